package money

import (
	"bytes"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/wallet-engine/internal/errs"
)

// Scale is the number of minor-unit digits (cents).
const Scale = 2

// Both wrap errs.ErrInvalidAmount.
var (
	ErrMalformed = fmt.Errorf("malformed amount: %w", errs.ErrInvalidAmount)
	ErrPrecision = fmt.Errorf("more than 2 decimal places: %w", errs.ErrInvalidAmount)
	ErrOverflow  = fmt.Errorf("amount out of range: %w", errs.ErrInvalidAmount)
)

// Money is an amount in minor units. It may be negative when used as a
// signed delta; balances are kept non-negative by the wallet store.
type Money int64

const Zero Money = 0

func FromMinor(v int64) Money { return Money(v) }

// Parse reads a decimal string such as "100.50" without going through float.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return FromDecimal(d)
}

func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func FromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(Scale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrPrecision
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, ErrOverflow
	}
	return Money(minor.IntPart()), nil
}

func (m Money) Minor() int64 { return int64(m) }

func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -Scale) }

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money        { return -m }

// CheckedAdd is Add that reports false instead of wrapping around int64.
func (m Money) CheckedAdd(o Money) (Money, bool) {
	if (o > 0 && m > math.MaxInt64-o) || (o < 0 && m < math.MinInt64-o) {
		return 0, false
	}
	return m + o, true
}

// MulRate multiplies by rate and rounds to the nearest minor unit, half away
// from zero (half-up for the non-negative amounts fees are computed on).
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(rate).Round(0).IntPart())
}

func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	}
	return 0
}

func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsZero() bool     { return m == 0 }

// String formats with exactly two decimals, e.g. "0.50" or "-12.00".
func (m Money) String() string { return m.Decimal().StringFixed(Scale) }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts "12.34" or a bare JSON number; both are parsed as decimals.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(bytes.Trim(b, `"`))
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Int64Value makes pgx encode Money as a plain int8 in both wire formats;
// without it the text encoder would fall back to String.
func (m Money) Int64Value() (pgtype.Int8, error) {
	return pgtype.Int8{Int64: int64(m), Valid: true}, nil
}

func (m *Money) ScanInt64(v pgtype.Int8) error {
	if !v.Valid {
		return fmt.Errorf("cannot scan NULL into money: %w", errs.ErrStorageFault)
	}
	*m = Money(v.Int64)
	return nil
}
