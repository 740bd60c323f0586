// Package mimc pairs the in-circuit MiMC hasher with its native twin.
package mimc

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	nativemimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	stdhash "github.com/consensys/gnark/std/hash"
	stdmimc "github.com/consensys/gnark/std/hash/mimc"
)

// New returns the in-circuit MiMC hasher over BN254.
func New(api frontend.API) stdhash.FieldHasher {
	h, err := stdmimc.NewMiMC(api)
	if err != nil {
		panic(err)
	}
	return &h
}

// Sum hashes xs outside the circuit exactly as New does inside it: one
// reduced 32-byte field element per Write.
func Sum(xs ...*big.Int) *big.Int {
	h := nativemimc.NewMiMC()
	for _, x := range xs {
		var e fr.Element
		e.SetBigInt(x)
		b := e.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}
