package zkproof

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// FieldElement is an opaque 256-bit value as emitted by the proof system.
// The adapter never does arithmetic on it, it only moves it around.
type FieldElement struct {
	v uint256.Int
}

// NewFieldElement converts x into a FieldElement. It fails when x is negative
// or wider than 256 bits.
func NewFieldElement(x *big.Int) (FieldElement, error) {
	var fe FieldElement
	if x == nil {
		return fe, fmt.Errorf("nil field element")
	}
	if overflow := fe.v.SetFromBig(x); overflow || x.Sign() < 0 {
		return FieldElement{}, fmt.Errorf("field element %s out of uint256 range", x)
	}
	return fe, nil
}

// MustField is NewFieldElement for constants; it panics on bad input.
func MustField(s string) FieldElement {
	fe, err := ParseFieldElement(s)
	if err != nil {
		panic(err)
	}
	return fe
}

// ParseFieldElement accepts a decimal string or a 0x-prefixed hex string.
func ParseFieldElement(s string) (FieldElement, error) {
	s = strings.TrimSpace(s)
	base, digits := 10, s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, digits = 16, s[2:]
	}
	x, ok := new(big.Int).SetString(digits, base)
	if !ok || strings.HasPrefix(digits, "-") || strings.HasPrefix(digits, "+") {
		return FieldElement{}, fmt.Errorf("parse field element %q", s)
	}
	return NewFieldElement(x)
}

// Big returns a fresh *big.Int; mutating it does not touch the element.
func (f FieldElement) Big() *big.Int { return f.v.ToBig() }

func (f FieldElement) String() string { return f.v.Dec() }

// InField reports whether the element is a canonical member of the field
// with the given modulus.
func (f FieldElement) InField(modulus *big.Int) bool {
	return f.Big().Cmp(modulus) < 0
}

func (f FieldElement) Equal(o FieldElement) bool { return f.v.Eq(&o.v) }

func (f FieldElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.v.Dec())
}

// UnmarshalJSON takes a quoted decimal/hex string or a bare JSON number.
func (f *FieldElement) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("field element: %w", err)
		}
		s = n.String()
	}
	fe, err := ParseFieldElement(s)
	if err != nil {
		return err
	}
	*f = fe
	return nil
}
