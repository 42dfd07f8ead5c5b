package domain

import (
	"fmt"
	"math/big"
)

// ParseAmount parses a base-10 string of a non-negative integer of unbounded precision.
// Signs, whitespace, separators and fractional parts are rejected with ErrInvalidAmount.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidAmount, s)
		}
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// FormatAmount renders an amount as a base-10 string. A nil amount renders as "0".
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// IsNegative reports whether v is below zero.
func IsNegative(v *big.Int) bool {
	return v != nil && v.Sign() < 0
}
