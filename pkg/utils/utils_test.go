package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnitsFloor(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.1", 18, "100000000000000000"},
		{"1.23456789", 6, "1234567"},
		{"0.0000009", 6, "0"},
		{"123.999999999", 0, "123"},
		{"42", 0, "42"},
	}
	for _, c := range cases {
		got, err := ParseUnitsString(c.amount, c.decimals)
		require.NoError(t, err, c.amount)
		assert.Equal(t, c.want, got.String(), c.amount)
	}
}

func TestParseUnitsRejectsNegative(t *testing.T) {
	_, err := ParseUnits(decimal.RequireFromString("-1"), 18)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestRoundTripWithinResolution(t *testing.T) {
	for _, decimals := range []uint8{0, 6, 8, 18} {
		amount := decimal.RequireFromString("9876.543210987654321")
		base, err := ParseUnits(amount, decimals)
		require.NoError(t, err)
		back := AdjustDecimals(base, decimals)
		resolution := decimal.New(1, -int32(decimals))
		diff := amount.Sub(back)
		assert.True(t, diff.GreaterThanOrEqual(decimal.Zero), "floor must never round up")
		assert.True(t, diff.LessThan(resolution), "decimals=%d diff=%s", decimals, diff)
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.500000", FormatUnits(big.NewInt(1500000), 6))
	assert.Equal(t, "0", AdjustDecimals(nil, 18).String())
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, "995", ApplySlippage(big.NewInt(1000), 50).String())
	assert.Equal(t, "1000", ApplySlippage(big.NewInt(1000), 0).String())
	assert.Equal(t, "0", ApplySlippage(big.NewInt(1000), 10000).String())
	assert.Equal(t, "9", ApplySlippage(big.NewInt(10), 50).String())
}

func TestChecksumAddress(t *testing.T) {
	assert.Equal(t, "0x4200000000000000000000000000000000000006", ChecksumAddress(" 0x4200000000000000000000000000000000000006 "))
	assert.Equal(t, "", ChecksumAddress(""))
	assert.True(t, IsHexAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"))
	assert.False(t, IsHexAddress("0x1234"))
}
