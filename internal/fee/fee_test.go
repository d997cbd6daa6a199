package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/wallet-engine/internal/money"
)

func TestDefaultPolicy(t *testing.T) {
	p := Default()
	assert.Equal(t, money.Money(5), p.Fee(money.FromMinor(1000)))
	assert.Equal(t, money.Money(1005), p.TotalDebit(money.FromMinor(1000)))

	// 100.00 -> 0.50 fee, 100.50 debit
	assert.Equal(t, money.MustParse("0.50"), p.Fee(money.MustParse("100.00")))
	assert.Equal(t, money.MustParse("100.50"), p.TotalDebit(money.MustParse("100.00")))
}

func TestFeeRoundsHalfUp(t *testing.T) {
	p := Default()
	assert.Equal(t, money.Money(1), p.Fee(money.FromMinor(100))) // 0.5
	assert.Equal(t, money.Money(0), p.Fee(money.FromMinor(99)))  // 0.495
	assert.Equal(t, money.Money(1), p.Fee(money.FromMinor(101))) // 0.505
	assert.Equal(t, money.Money(0), p.Fee(money.Zero))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("0.01")
	require.NoError(t, err)
	assert.True(t, p.Rate().Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, money.Money(10), p.Fee(money.FromMinor(1000)))

	for _, bad := range []string{"-0.1", "1", "x"} {
		_, err := ParsePolicy(bad)
		assert.ErrorIs(t, err, ErrInvalidRate, bad)
	}

	zero, err := ParsePolicy("0")
	require.NoError(t, err)
	assert.Equal(t, money.Zero, zero.Fee(money.FromMinor(12345)))
}
