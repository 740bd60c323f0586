package zkproof

import (
	"fmt"
	"math/big"
)

// Proof is a Groth16 proof in the proof system's native layout. The groups
// are slices so malformed input can be carried to Transform and rejected
// there rather than silently truncated while decoding.
type Proof struct {
	PointA []FieldElement   `json:"pi_a"`
	PointB [][]FieldElement `json:"pi_b"`
	PointC []FieldElement   `json:"pi_c"`
}

// ShapeError reports a proof or signal group with the wrong dimensions.
type ShapeError struct {
	Field string
	Want  string
	Got   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("zkproof: %s has shape %s, want %s", e.Field, e.Got, e.Want)
}

// ContractArgs is the positional tuple the verifier-gated contract expects.
type ContractArgs struct {
	A     [2]FieldElement
	B     [2][2]FieldElement
	C     [2]FieldElement
	Input [2]FieldElement
}

// Transform lays out proof and publicSignals for the on-chain verifier.
//
// Every row of pi_b is swapped: the proof system stores each G2 coordinate as
// (c0, c1) while the EVM pairing precompile reads (c1, c0).
func Transform(p Proof, publicSignals []FieldElement) (ContractArgs, error) {
	var out ContractArgs

	if err := p.CheckShape(); err != nil {
		return out, err
	}
	if err := checkPair("publicSignals", publicSignals); err != nil {
		return out, err
	}

	out.A = [2]FieldElement{p.PointA[0], p.PointA[1]}
	out.B = [2][2]FieldElement{
		{p.PointB[0][1], p.PointB[0][0]},
		{p.PointB[1][1], p.PointB[1][0]},
	}
	out.C = [2]FieldElement{p.PointC[0], p.PointC[1]}
	out.Input = [2]FieldElement{publicSignals[0], publicSignals[1]}
	return out, nil
}

// CheckShape reports the first group that is not a pair (pi_a, pi_c) or a
// 2×2 matrix (pi_b).
func (p Proof) CheckShape() error {
	if err := checkPair("pi_a", p.PointA); err != nil {
		return err
	}
	if len(p.PointB) != 2 {
		return &ShapeError{Field: "pi_b", Want: "[2][2]", Got: fmt.Sprintf("[%d][]", len(p.PointB))}
	}
	for i, row := range p.PointB {
		if err := checkPair(fmt.Sprintf("pi_b[%d]", i), row); err != nil {
			return err
		}
	}
	return checkPair("pi_c", p.PointC)
}

func checkPair(field string, xs []FieldElement) error {
	if len(xs) != 2 {
		return &ShapeError{Field: field, Want: "[2]", Got: fmt.Sprintf("[%d]", len(xs))}
	}
	return nil
}

// ABI returns the tuple as go-ethereum packable values. Each call allocates
// new integers.
func (c ContractArgs) ABI() (a [2]*big.Int, b [2][2]*big.Int, cc [2]*big.Int, input [2]*big.Int) {
	for i := 0; i < 2; i++ {
		a[i] = c.A[i].Big()
		cc[i] = c.C[i].Big()
		input[i] = c.Input[i].Big()
		for j := 0; j < 2; j++ {
			b[i][j] = c.B[i][j].Big()
		}
	}
	return
}
