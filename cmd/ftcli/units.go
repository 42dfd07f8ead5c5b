package main

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"ft-ledger/internal/domain"
)

// nearDecimals is the number of yocto units in one NEAR.
const nearDecimals = 24

// parseUnits converts a human amount such as "1.5" into base units with the
// given number of decimals. Amounts finer than one base unit are rejected.
func parseUnits(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", domain.ErrInvalidAmount, s)
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", domain.ErrInvalidAmount, s, decimals)
	}
	return shifted.BigInt(), nil
}

// formatUnits renders base units as a human amount.
func formatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}
