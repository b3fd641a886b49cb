package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has more fractional digits than the token supports")
)

// ParseUnits converts a human decimal string into base units. Fractional
// digits beyond decimals are rejected rather than rounded.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	value := strings.TrimSpace(amount)
	if value == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if -d.Exponent() > decimals {
		// allow trailing zeros such as "1.500000" on a 2-decimals token
		if !d.Equal(d.Truncate(decimals)) {
			return nil, ErrTooManyDecimals
		}
	}
	return d.Shift(decimals).BigInt(), nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}
