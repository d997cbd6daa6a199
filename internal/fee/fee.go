package fee

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/wallet-engine/internal/money"
)

// DefaultRate is 0.5%.
var DefaultRate = decimal.RequireFromString("0.005")

var ErrInvalidRate = errors.New("fee rate must be in [0, 1)")

type Policy struct {
	rate decimal.Decimal
}

func NewPolicy(rate decimal.Decimal) (Policy, error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Policy{}, ErrInvalidRate
	}
	return Policy{rate: rate}, nil
}

// ParsePolicy builds a policy from a rate string such as "0.005".
func ParsePolicy(rate string) (Policy, error) {
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return Policy{}, ErrInvalidRate
	}
	return NewPolicy(d)
}

func Default() Policy { return Policy{rate: DefaultRate} }

func (p Policy) Rate() decimal.Decimal { return p.rate }

// Fee rounds amount*rate half-up to the minor unit.
func (p Policy) Fee(amount money.Money) money.Money {
	if !amount.IsPositive() {
		return money.Zero
	}
	return amount.MulRate(p.rate)
}

func (p Policy) TotalDebit(amount money.Money) money.Money {
	return amount.Add(p.Fee(amount))
}
