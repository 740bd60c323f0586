package circuits

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"

	"github.com/yourorg/manteia/internal/mimc"
)

func Curve() ecc.ID { return ecc.BN254 }

// RevenueBits bounds declared monthly revenue, in whole currency units.
const RevenueBits = 64

// RevenueCircuit proves that a committed monthly revenue is at least the
// public threshold. Public signals, in order: Threshold, Commitment.
type RevenueCircuit struct {
	Threshold  frontend.Variable `gnark:",public"`
	Commitment frontend.Variable `gnark:",public"`

	Revenue frontend.Variable
	Salt    frontend.Variable
}

func (c *RevenueCircuit) Define(api frontend.API) error {
	api.ToBinary(c.Revenue, RevenueBits)
	api.ToBinary(c.Threshold, RevenueBits)
	api.AssertIsLessOrEqual(c.Threshold, c.Revenue)

	h := mimc.New(api)
	h.Write(c.Revenue, c.Salt)
	api.AssertIsEqual(h.Sum(), c.Commitment)
	return nil
}
