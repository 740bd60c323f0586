package units

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSmallestSixDecimals(t *testing.T) {
	vec := []struct {
		in   string
		want string
	}{
		{"10000", "10000000000"},
		{"1", "1000000"},
		{"0.5", "500000"},
		{"12.345678", "12345678"},
		{"0.000001", "1"},
		{"12.3456789", "12345678"}, // truncated, not rounded
		{"0.0000009", "0"},         // below one unit
		{"99999999999999999999.999999", "99999999999999999999999999"},
		{".25", "250000"},
		{"7.", "7000000"},
	}
	for _, v := range vec {
		a, err := ParseAmount(v.in)
		require.NoError(t, err, v.in)
		require.Equal(t, v.want, a.Smallest(StableDecimals).String(), v.in)
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"", ".", "abc", "1/2", "1e3", "-5", "+5", "1.2.3", "1,000"} {
		_, err := ParseAmount(in)
		require.Error(t, err, in)
	}
	_, err := ParseAmount("0.000")
	require.True(t, errors.Is(err, ErrNotPositive))
}

func TestAmountString(t *testing.T) {
	require.Equal(t, "10000", MustAmount("10000").String())
	require.Equal(t, "12.5", MustAmount("12.50").String())
	require.Equal(t, "0.125", MustAmount("0.125").String())
	require.Equal(t, 12.5, MustAmount("12.5").Float64())
}

func TestAmountJSON(t *testing.T) {
	var body struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2500.75","b":10000}`), &body))
	require.Equal(t, "2500750000", body.A.Smallest(StableDecimals).String())
	require.Equal(t, "10000", body.B.String())

	out, err := json.Marshal(body.A)
	require.NoError(t, err)
	require.Equal(t, `"2500.75"`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"a":-1}`), &body))
}

func TestAmountStringKeepsEveryTypedDigit(t *testing.T) {
	long := "1." + strings.Repeat("0", 95) + "1"
	require.Equal(t, long, MustAmount(long).String())

	deep := "0." + strings.Repeat("9", 120)
	require.Equal(t, deep, MustAmount(deep).String())

	require.Equal(t, "12.5", MustAmount("12.500").String())
	require.Equal(t, "0.0000001", MustAmount(".0000001").String())
}
