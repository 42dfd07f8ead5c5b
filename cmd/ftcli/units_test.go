package main

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ft-ledger/internal/domain"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 2, "150"},
		{"0.0013", 24, "1300000000000000000000"},
		{"42", 0, "42"},
		{"0", 18, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseUnits(tt.in, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseUnits_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "0.001"} {
		_, err := parseUnits(in, 2)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, in)
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "7", formatUnits(big.NewInt(700), 2))
	assert.Equal(t, "0.0000000000000003", formatUnits(big.NewInt(300), 18))
	assert.Equal(t, "0", formatUnits(nil, 18))
}
