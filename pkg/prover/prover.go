// Package prover is a reference proof generator for the revenue circuit. It
// emits artifacts in the snarkjs layout the loan flow consumes.
package prover

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	backendwitness "github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/yourorg/manteia/circuits"
	"github.com/yourorg/manteia/pkg/storagehash"
	"github.com/yourorg/manteia/pkg/witness"
	"github.com/yourorg/manteia/pkg/zkproof"
)

const (
	pkFile = "revenue_pk.bin"
	vkFile = "revenue_vk.bin"
)

// Keys bundles the compiled circuit with its Groth16 keys.
type Keys struct {
	CS constraint.ConstraintSystem
	PK groth16.ProvingKey
	VK groth16.VerifyingKey
}

// Compile builds the revenue circuit's R1CS.
func Compile() (constraint.ConstraintSystem, error) {
	return frontend.Compile(circuits.Curve().ScalarField(), r1cs.NewBuilder, &circuits.RevenueCircuit{})
}

// Setup compiles the circuit and loads keys from dir, running a fresh
// (single-party, test-grade) setup and caching it when none are present.
// An empty dir skips the cache.
func Setup(dir string) (*Keys, error) {
	cs, err := Compile()
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	if dir != "" {
		if keys, err := loadKeys(dir, cs); err == nil {
			return keys, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	keys := &Keys{CS: cs, PK: pk, VK: vk}
	if dir != "" {
		if err := saveKeys(dir, keys); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func loadKeys(dir string, cs constraint.ConstraintSystem) (*Keys, error) {
	pkBytes, err := os.ReadFile(filepath.Join(dir, pkFile))
	if err != nil {
		return nil, err
	}
	vk, err := LoadVerifyingKey(filepath.Join(dir, vkFile))
	if err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(circuits.Curve())
	if _, err := pk.ReadFrom(bytes.NewReader(pkBytes)); err != nil {
		return nil, fmt.Errorf("read proving key: %w", err)
	}
	return &Keys{CS: cs, PK: pk, VK: vk}, nil
}

func saveKeys(dir string, keys *Keys) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var b bytes.Buffer
	if _, err := keys.PK.WriteTo(&b); err != nil {
		return fmt.Errorf("write proving key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, pkFile), b.Bytes(), 0o644); err != nil {
		return err
	}
	b.Reset()
	if _, err := keys.VK.WriteTo(&b); err != nil {
		return fmt.Errorf("write verifying key: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, vkFile), b.Bytes(), 0o644)
}

// LoadVerifyingKey reads a verifying key written by Setup.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	vkBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vk := groth16.NewVerifyingKey(circuits.Curve())
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return nil, fmt.Errorf("read verifying key: %w", err)
	}
	return vk, nil
}

// Metadata is the public supporting document the storage hash addresses.
type Metadata struct {
	Circuit     string    `json:"circuit"`
	Threshold   string    `json:"threshold"`
	Commitment  string    `json:"commitment"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Generate proves st and packages the result as a loan artifact together
// with the metadata document its storage hash points at.
func Generate(keys *Keys, st witness.Statement, now time.Time) (*zkproof.Artifact, []byte, error) {
	bundle, err := witness.Build(st)
	if err != nil {
		return nil, nil, err
	}

	proof, err := groth16.Prove(keys.CS, keys.PK, bundle.Full)
	if err != nil {
		return nil, nil, fmt.Errorf("prove: %w", err)
	}
	public, err := bundle.Full.Public()
	if err != nil {
		return nil, nil, err
	}

	p, signals, err := Export(proof, public)
	if err != nil {
		return nil, nil, err
	}

	meta, err := json.MarshalIndent(Metadata{
		Circuit:     "revenue-threshold/bn254/groth16",
		Threshold:   bundle.Public.Threshold,
		Commitment:  bundle.Public.Commitment,
		GeneratedAt: now.UTC(),
	}, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	hash, err := storagehash.Compute(meta)
	if err != nil {
		return nil, nil, err
	}

	return &zkproof.Artifact{StorageHash: hash, PublicSignals: signals, Proof: p}, meta, nil
}

// Export converts a gnark BN254 proof and public witness into the snarkjs
// layout: affine coordinates, G2 coordinates as (A0, A1).
func Export(proof groth16.Proof, public backendwitness.Witness) (zkproof.Proof, []zkproof.FieldElement, error) {
	p, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return zkproof.Proof{}, nil, fmt.Errorf("unsupported proof type %T", proof)
	}
	if len(p.Commitments) > 0 {
		return zkproof.Proof{}, nil, fmt.Errorf("proofs with commitments have no snarkjs layout")
	}

	vec, ok := public.Vector().(fr.Vector)
	if !ok {
		return zkproof.Proof{}, nil, fmt.Errorf("unsupported witness vector %T", public.Vector())
	}

	var errs []error
	elem := func(x *big.Int) zkproof.FieldElement {
		fe, err := zkproof.NewFieldElement(x)
		errs = append(errs, err)
		return fe
	}

	out := zkproof.Proof{
		PointA: []zkproof.FieldElement{
			elem(p.Ar.X.BigInt(new(big.Int))),
			elem(p.Ar.Y.BigInt(new(big.Int))),
		},
		PointB: [][]zkproof.FieldElement{
			{elem(p.Bs.X.A0.BigInt(new(big.Int))), elem(p.Bs.X.A1.BigInt(new(big.Int)))},
			{elem(p.Bs.Y.A0.BigInt(new(big.Int))), elem(p.Bs.Y.A1.BigInt(new(big.Int)))},
		},
		PointC: []zkproof.FieldElement{
			elem(p.Krs.X.BigInt(new(big.Int))),
			elem(p.Krs.Y.BigInt(new(big.Int))),
		},
	}
	signals := make([]zkproof.FieldElement, len(vec))
	for i := range vec {
		signals[i] = elem(vec[i].BigInt(new(big.Int)))
	}
	return out, signals, errors.Join(errs...)
}

// Import is the inverse of Export.
func Import(p zkproof.Proof) (groth16.Proof, error) {
	if err := p.CheckShape(); err != nil {
		return nil, err
	}
	var out groth16bn254.Proof
	out.Ar.X.SetBigInt(p.PointA[0].Big())
	out.Ar.Y.SetBigInt(p.PointA[1].Big())
	out.Bs.X.A0.SetBigInt(p.PointB[0][0].Big())
	out.Bs.X.A1.SetBigInt(p.PointB[0][1].Big())
	out.Bs.Y.A0.SetBigInt(p.PointB[1][0].Big())
	out.Bs.Y.A1.SetBigInt(p.PointB[1][1].Big())
	out.Krs.X.SetBigInt(p.PointC[0].Big())
	out.Krs.Y.SetBigInt(p.PointC[1].Big())

	if !out.Ar.IsOnCurve() || !out.Bs.IsOnCurve() || !out.Krs.IsOnCurve() {
		return nil, fmt.Errorf("proof point not on curve")
	}
	return &out, nil
}

// Verify checks an artifact against vk off-chain.
func Verify(vk groth16.VerifyingKey, a *zkproof.Artifact) error {
	if err := zkproof.CheckCanonical(a.Proof, a.PublicSignals); err != nil {
		return err
	}
	proof, err := Import(a.Proof)
	if err != nil {
		return err
	}
	if len(a.PublicSignals) != 2 {
		return &zkproof.ShapeError{Field: "publicSignals", Want: "[2]", Got: fmt.Sprintf("[%d]", len(a.PublicSignals))}
	}
	assign, err := witness.PublicOnly(a.PublicSignals[0].Big(), a.PublicSignals[1].Big())
	if err != nil {
		return err
	}
	pubWit, err := frontend.NewWitness(assign, circuits.Curve().ScalarField(), frontend.PublicOnly())
	if err != nil {
		return err
	}
	if err := groth16.Verify(proof, vk, pubWit); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	return nil
}
