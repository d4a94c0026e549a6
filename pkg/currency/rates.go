package currency

import (
	"github.com/shopspring/decimal"

	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// Table converts integer-cent amounts between supported currencies using a
// fixed-point rate table. Rates are expressed as units of base currency per
// one unit of the quoted currency.
type Table struct {
	base  enums.Currency
	rates map[enums.Currency]decimal.Decimal
}

// DefaultTable returns the static rate table the platform ships with. GBP is
// the base currency every payout balance is normalized to.
func DefaultTable() *Table {
	return &Table{
		base: enums.CurrencyGBP,
		rates: map[enums.Currency]decimal.Decimal{
			enums.CurrencyGBP: decimal.NewFromInt(1),
			enums.CurrencyUSD: decimal.RequireFromString("0.79"),
			enums.CurrencyEUR: decimal.RequireFromString("0.85"),
		},
	}
}

// Base returns the base currency of the table.
func (t *Table) Base() enums.Currency {
	return t.base
}

// Supports reports whether the currency has a configured rate.
func (t *Table) Supports(currency enums.Currency) bool {
	_, ok := t.rates[currency]
	return ok
}

// ToBase converts an amount in cents of the given currency into base-currency
// cents, rounding to the nearest cent.
func (t *Table) ToBase(amountCents int, currency enums.Currency) (int, error) {
	rate, ok := t.rates[currency]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").
			WithDetails(map[string]any{"currency": currency.String()})
	}
	converted := decimal.NewFromInt(int64(amountCents)).Mul(rate).Round(0)
	return int(converted.IntPart()), nil
}
