package domain

import (
	"encoding/json"
	"fmt"

	"marketplace-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by every Money value.
// Amounts cross the API boundary as decimal strings with exactly this scale.
const MoneyScale = 4

// Money is an immutable fixed-precision amount bound to a currency code.
// It is the only representation of monetary value in the system; no component
// holds balances or fees as floats or raw integers.
//
// Inputs with more than four fractional digits are rounded half-up at
// construction. This is the single rounding point: all arithmetic on
// already-constructed values is exact.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney parses a decimal string into a Money value.
// The amount must be a finite, non-negative number.
func NewMoney(amount string, currency string) (Money, error) {
	if currency == "" {
		return Money{}, apperror.ErrInvalidAmount("currency is required")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, apperror.ErrInvalidAmount(fmt.Sprintf("%q is not a valid decimal", amount))
	}
	if d.IsNegative() {
		return Money{}, apperror.ErrInvalidAmount("must not be negative")
	}
	return Money{amount: d.Round(MoneyScale), currency: currency}, nil
}

// NewMoneyFromDecimal builds a Money value from an already-parsed decimal,
// used by the storage layer when scanning NUMERIC columns.
func NewMoneyFromDecimal(d decimal.Decimal, currency string) (Money, error) {
	if currency == "" {
		return Money{}, apperror.ErrInvalidAmount("currency is required")
	}
	if d.IsNegative() {
		return Money{}, apperror.ErrInvalidAmount("must not be negative")
	}
	return Money{amount: d.Round(MoneyScale), currency: currency}, nil
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Add returns m + o. Fails if the currencies differ.
func (m Money) Add(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, apperror.ErrCurrencyMismatch(m.currency, o.currency)
	}
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m - o. Fails if the currencies differ or the result would be
// negative; callers that need a conditional subtraction check LessThan first.
func (m Money) Sub(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, apperror.ErrCurrencyMismatch(m.currency, o.currency)
	}
	result := m.amount.Sub(o.amount)
	if result.IsNegative() {
		return Money{}, apperror.ErrInvalidAmount("subtraction result would be negative")
	}
	return Money{amount: result, currency: m.currency}, nil
}

// Percent returns m × pct / 100, rounded half-up to the standard scale.
// Used for partial refunds.
func (m Money) Percent(pct int) (Money, error) {
	if pct < 0 || pct > 100 {
		return Money{}, apperror.ErrInvalidAmount("percentage must be between 0 and 100")
	}
	p := m.amount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100))
	return Money{amount: p.Round(MoneyScale), currency: m.currency}, nil
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// LessThan reports whether m < o. Fails if the currencies differ.
func (m Money) LessThan(o Money) (bool, error) {
	if m.currency != o.currency {
		return false, apperror.ErrCurrencyMismatch(m.currency, o.currency)
	}
	return m.amount.LessThan(o.amount), nil
}

// Equal reports whether m and o have the same currency and amount.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// Currency returns the ISO currency code.
func (m Money) Currency() string {
	return m.currency
}

// Decimal returns the underlying decimal amount.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// String renders the amount with exactly four fractional digits,
// e.g. "50.75" becomes "50.7500".
func (m Money) String() string {
	return m.amount.StringFixed(MoneyScale)
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes Money as {"amount":"50.7500","currency":"USD"} so
// cached executor results round-trip without precision loss.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.String(), Currency: m.currency})
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewMoney(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
