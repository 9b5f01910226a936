package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the ledger's base currency (ISO 4217).
const DefaultCurrency = "ZAR"

// moneyScale is the number of decimal places every Money amount carries.
const moneyScale = 2

// Money is an immutable amount in a specific currency. Amounts are always
// non-negative and rounded to two decimal places, half away from zero;
// insufficiency is expressed by refusing an operation, never by a negative
// Money. Compare by value.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney validates and normalizes a monetary value. The amount is rounded
// to two decimal places (half away from zero) and the currency upper-cased.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, newError(ErrInvalidAmount, "amount cannot be negative: %s", amount)
	}
	if strings.TrimSpace(currency) == "" {
		return Money{}, newError(ErrInvalidCurrency, "currency is required")
	}
	return Money{
		amount:   amount.Round(moneyScale),
		currency: strings.ToUpper(strings.TrimSpace(currency)),
	}, nil
}

// NewMoneyFromString parses a decimal string such as "125.50".
func NewMoneyFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, newError(ErrInvalidAmount, "invalid amount %q", amount)
	}
	return NewMoney(d, currency)
}

// Zero returns a zero value in the given currency, defaulting to ZAR.
func Zero(currency string) Money {
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	return Money{amount: decimal.Zero.Round(moneyScale), currency: strings.ToUpper(currency)}
}

// Amount returns the decimal amount at scale 2.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the upper-cased ISO 4217 code.
func (m Money) Currency() string {
	return m.currency
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Add returns m + o. Fails with CurrencyMismatch across currencies.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o, "add"); err != nil {
		return Money{}, err
	}
	return NewMoney(m.amount.Add(o.amount), m.currency)
}

// Subtract returns m - o. Fails with CurrencyMismatch across currencies and
// with InvalidAmount if the result would be negative.
func (m Money) Subtract(o Money) (Money, error) {
	if err := m.sameCurrency(o, "subtract"); err != nil {
		return Money{}, err
	}
	return NewMoney(m.amount.Sub(o.amount), m.currency)
}

// Cmp returns -1, 0 or 1 comparing m against o.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o, "compare"); err != nil {
		return 0, err
	}
	return m.amount.Cmp(o.amount), nil
}

func (m Money) GreaterThan(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c > 0, err
}

func (m Money) LessThan(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c < 0, err
}

func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

// MultiplyBy scales the amount by a factor, re-rounding per the constructor
// rule. The factor must not produce a negative amount.
func (m Money) MultiplyBy(factor decimal.Decimal) (Money, error) {
	return NewMoney(m.amount.Mul(factor), m.currency)
}

func (m Money) sameCurrency(o Money, op string) error {
	if m.currency != o.currency {
		return newError(ErrCurrencyMismatch, "cannot %s %s and %s", op, m.currency, o.currency)
	}
	return nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(moneyScale), m.currency)
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as a fixed two-decimal string to keep wire
// values exact.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.StringFixed(moneyScale), Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewMoneyFromString(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
