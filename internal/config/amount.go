package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a decimal quantity in whole units ("0.005", 100).
type Amount struct {
	decimal.Decimal
}

// ParseAmount parses a decimal string.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return Amount{d}, nil
}

// MustAmount is ParseAmount for constants.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// UnmarshalTOML accepts strings, integers and floats.
func (a *Amount) UnmarshalTOML(v interface{}) error {
	switch x := v.(type) {
	case string:
		p, err := ParseAmount(x)
		if err != nil {
			return err
		}
		*a = p
	case int64:
		a.Decimal = decimal.NewFromInt(x)
	case float64:
		a.Decimal = decimal.NewFromFloat(x)
	default:
		return fmt.Errorf("amount: unsupported toml type %T", v)
	}
	return nil
}

// Wei converts the amount to the smallest unit of a token with decimals.
func (a Amount) Wei(decimals int32) *big.Int {
	return a.Shift(decimals).BigInt()
}
