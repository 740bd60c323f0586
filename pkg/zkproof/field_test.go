package zkproof

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFieldElement(t *testing.T) {
	x, err := ParseFieldElement("0x00ff")
	require.NoError(t, err)
	require.Equal(t, "255", x.String())

	y, err := ParseFieldElement(" 255 ")
	require.NoError(t, err)
	require.True(t, x.Equal(y))

	for _, bad := range []string{"", "-1", "+1", "12a", "0xzz"} {
		_, err := ParseFieldElement(bad)
		require.Error(t, err, bad)
	}
}

func TestNewFieldElementRange(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err := NewFieldElement(max)
	require.NoError(t, err)

	_, err = NewFieldElement(new(big.Int).Add(max, big.NewInt(1)))
	require.Error(t, err)

	_, err = NewFieldElement(big.NewInt(-5))
	require.Error(t, err)
}

func TestFieldElementJSON(t *testing.T) {
	var xs []FieldElement
	require.NoError(t, json.Unmarshal([]byte(`["42", 43, "0x2c"]`), &xs))
	require.Equal(t, "42", xs[0].String())
	require.Equal(t, "43", xs[1].String())
	require.Equal(t, "44", xs[2].String())

	out, err := json.Marshal(xs)
	require.NoError(t, err)
	require.JSONEq(t, `["42","43","44"]`, string(out))

	var bad FieldElement
	require.Error(t, json.Unmarshal([]byte(`true`), &bad))
}
