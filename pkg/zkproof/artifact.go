package zkproof

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Artifact is what the proof generator hands to the borrower session: the
// proof, its public signals and the content address of the supporting data.
// Treat it as read-only once produced.
type Artifact struct {
	StorageHash   string         `json:"ipfsHash"`
	PublicSignals []FieldElement `json:"publicSignals"`
	Proof         Proof          `json:"proof"`
}

// ReadArtifact decodes an artifact and drops the projective z coordinate
// snarkjs appends to each point.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	a.Proof = a.Proof.affine()
	return &a, nil
}

// LoadArtifact reads an artifact JSON file.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()
	return ReadArtifact(f)
}

// LoadSnarkJS assembles an artifact from the proof.json / public.json pair
// snarkjs writes, plus the storage hash of the supporting data.
func LoadSnarkJS(proofPath, publicPath, storageHash string) (*Artifact, error) {
	proofData, err := os.ReadFile(proofPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read proof file: %w", err)
	}
	var p Proof
	if err := json.Unmarshal(proofData, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proof: %w", err)
	}

	publicData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public signals: %w", err)
	}
	var signals []FieldElement
	if err := json.Unmarshal(publicData, &signals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal public signals: %w", err)
	}

	return &Artifact{
		StorageHash:   storageHash,
		PublicSignals: signals,
		Proof:         p.affine(),
	}, nil
}

// Save writes the artifact as indented JSON.
func (a *Artifact) Save(path string) error {
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

var (
	one  = MustField("1")
	zero = MustField("0")
)

// affine strips a trailing z coordinate only when it is the affine identity
// ("1" for G1, ["1","0"] for G2). Anything else is left for Transform to reject.
func (p Proof) affine() Proof {
	trimG1 := func(xs []FieldElement) []FieldElement {
		if len(xs) == 3 && xs[2].Equal(one) {
			return xs[:2]
		}
		return xs
	}
	out := Proof{PointA: trimG1(p.PointA), PointB: p.PointB, PointC: trimG1(p.PointC)}
	if n := len(p.PointB); n == 3 {
		z := p.PointB[2]
		if len(z) == 2 && z[0].Equal(one) && z[1].Equal(zero) {
			out.PointB = p.PointB[:2]
		}
	}
	return out
}

// CheckCanonical reports coordinates outside the BN254 base field and public
// signals outside the scalar field. It says nothing about proof validity.
func CheckCanonical(p Proof, publicSignals []FieldElement) error {
	q := fp.Modulus()
	r := fr.Modulus()

	check := func(field string, xs []FieldElement, mod string) error {
		m := q
		if mod == "fr" {
			m = r
		}
		for i, x := range xs {
			if !x.InField(m) {
				return fmt.Errorf("%s[%d] = %s is not reduced mod %s", field, i, x, mod)
			}
		}
		return nil
	}

	if err := check("pi_a", p.PointA, "fp"); err != nil {
		return err
	}
	for i, row := range p.PointB {
		if err := check(fmt.Sprintf("pi_b[%d]", i), row, "fp"); err != nil {
			return err
		}
	}
	if err := check("pi_c", p.PointC, "fp"); err != nil {
		return err
	}
	return check("publicSignals", publicSignals, "fr")
}
