package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"12.5", 18, "12500000000000000000"},
		{"1", 6, "1000000"},
		{"0.000001", 6, "1"},
		{" 42 ", 0, "42"},
		{"1.500000", 2, "150"},
		{"0", 18, "0"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.in, tc.decimals)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestParseUnits_Rejects(t *testing.T) {
	_, err := ParseUnits("", 18)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseUnits("abc", 18)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseUnits("0.0000001", 6)
	require.ErrorIs(t, err, ErrTooManyDecimals)
}

func TestFormatUnits(t *testing.T) {
	v, ok := new(big.Int).SetString("12500000000000000000", 10)
	require.True(t, ok)
	require.Equal(t, "12.5", FormatUnits(v, 18))
	require.Equal(t, "0.000123", FormatUnits(big.NewInt(123000000000000), 18))
	require.Equal(t, "7", FormatUnits(big.NewInt(7), 0))
	require.Equal(t, "0", FormatUnits(nil, 18))
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, in := range []string{"12.5", "0.1", "1000", "3.14159"} {
		v, err := ParseUnits(in, 18)
		require.NoError(t, err)
		require.Equal(t, in, FormatUnits(v, 18))
	}
}
