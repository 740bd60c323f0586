package witness

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"

	"github.com/yourorg/manteia/circuits"
	"github.com/yourorg/manteia/internal/mimc"
)

// Statement is the borrower's private claim.
type Statement struct {
	MonthlyRevenue uint64   // whole currency units
	Threshold      uint64   // public floor the lender asked for
	Salt           *big.Int // nil draws a random one
}

// NewSalt draws a uniformly random scalar field element.
func NewSalt() (*big.Int, error) {
	s, err := rand.Int(rand.Reader, fr.Modulus())
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return s, nil
}

// Build assigns the revenue circuit. It refuses statements the circuit
// would reject so the caller gets a readable error instead of a solver one.
func Build(st Statement) (*Bundle, error) {
	if st.MonthlyRevenue < st.Threshold {
		return nil, fmt.Errorf("revenue %d is below threshold %d", st.MonthlyRevenue, st.Threshold)
	}

	salt := st.Salt
	if salt == nil {
		var err error
		if salt, err = NewSalt(); err != nil {
			return nil, err
		}
	}

	revenue := new(big.Int).SetUint64(st.MonthlyRevenue)
	threshold := new(big.Int).SetUint64(st.Threshold)
	commitment := mimc.Sum(revenue, salt)

	assignment := &circuits.RevenueCircuit{
		Threshold:  threshold,
		Commitment: commitment,
		Revenue:    revenue,
		Salt:       salt,
	}
	full, err := frontend.NewWitness(assignment, circuits.Curve().ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness: %w", err)
	}

	return &Bundle{
		Full: full,
		Public: PublicInputs{
			Threshold:  threshold.String(),
			Commitment: commitment.String(),
		},
		Assignment: assignment,
	}, nil
}

// PublicOnly rebuilds the public part of a witness from its signals.
func PublicOnly(threshold, commitment *big.Int) (*circuits.RevenueCircuit, error) {
	if threshold == nil || commitment == nil {
		return nil, fmt.Errorf("missing public input")
	}
	return &circuits.RevenueCircuit{Threshold: threshold, Commitment: commitment}, nil
}
