// Package units converts human-entered decimal amounts into ledger units.
package units

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// StableDecimals is the denomination of the stable asset loans are drawn in.
const StableDecimals = 6

var ErrNotPositive = errors.New("amount must be positive")

// Amount is an exact positive decimal. The zero value is invalid.
type Amount struct {
	r *big.Rat
}

// ParseAmount accepts plain decimal notation ("10000", "12.5"); fractions,
// exponents and signs are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if !digits(intPart, true) || !digits(frac, true) || (intPart == "" && frac == "") {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	if frac == "" {
		frac = "0"
	}
	r, ok := new(big.Rat).SetString(intPart + "." + frac)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if r.Sign() <= 0 {
		return Amount{}, ErrNotPositive
	}
	return Amount{r: r}, nil
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func digits(s string, allowEmpty bool) bool {
	if s == "" {
		return allowEmpty
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Smallest scales the amount by 10^decimals and truncates whatever is left
// past the last decimal.
func (a Amount) Smallest(decimals int) *big.Int {
	if a.r == nil {
		return new(big.Int)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	num := new(big.Int).Mul(a.r.Num(), scale)
	return num.Quo(num, a.r.Denom())
}

// Float64 is the nearest float; only meant for heuristics.
func (a Amount) Float64() float64 {
	if a.r == nil {
		return 0
	}
	f, _ := a.r.Float64()
	return f
}

func (a Amount) IsZero() bool { return a.r == nil || a.r.Sign() == 0 }

// String renders the amount without trailing zeros.
func (a Amount) String() string {
	if a.r == nil {
		return "0"
	}
	if a.r.IsInt() {
		return a.r.Num().String()
	}
	s := strings.TrimRight(a.r.FloatString(decimalPlaces(a.r.Denom())), "0")
	return strings.TrimSuffix(s, ".")
}

// decimalPlaces is the number of fractional digits that render 1/d exactly.
// Amounts come from decimal input, so d is 2^x·5^y and the answer is
// max(x, y).
func decimalPlaces(d *big.Int) int {
	var (
		rem  = new(big.Int).Set(d)
		two  = big.NewInt(2)
		five = big.NewInt(5)
		m    = new(big.Int)
		x, y int
	)
	for rem.Cmp(big.NewInt(1)) > 0 {
		if m.Mod(rem, two).Sign() == 0 {
			rem.Quo(rem, two)
			x++
			continue
		}
		if m.Mod(rem, five).Sign() == 0 {
			rem.Quo(rem, five)
			y++
			continue
		}
		// Not a decimal denominator; fall back to a fixed precision.
		return 80
	}
	return max(x, y)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON takes a quoted decimal or a bare JSON number.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		s = n.String()
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
