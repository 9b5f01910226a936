package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMoney(t *testing.T, amount, currency string) Money {
	t.Helper()
	m, err := NewMoneyFromString(amount, currency)
	require.NoError(t, err)
	return m
}

func TestNewMoney_RoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10.00"},
		{"10.015", "10.02"},
		{"0.125", "0.13"},
		{"99.999", "100.00"},
		{"10", "10.00"},
	}
	for _, tc := range cases {
		m, err := NewMoneyFromString(tc.in, "ZAR")
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, m.Amount().StringFixed(2), "input %s", tc.in)
	}
}

func TestNewMoney_RejectsNegativeAmount(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(-1), "ZAR")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestNewMoney_RejectsBlankCurrency(t *testing.T) {
	for _, currency := range []string{"", "   "} {
		_, err := NewMoney(decimal.NewFromInt(10), currency)
		assert.ErrorIs(t, err, ErrInvalidCurrency)
	}
}

func TestNewMoney_UppercasesCurrency(t *testing.T) {
	m := mustMoney(t, "5.00", "zar")
	assert.Equal(t, "ZAR", m.Currency())
}

func TestMoney_AddSubtract(t *testing.T) {
	a := mustMoney(t, "10.10", "ZAR")
	b := mustMoney(t, "0.90", "ZAR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "11.00 ZAR", sum.String())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, "9.20 ZAR", diff.String())
}

func TestMoney_SubtractBelowZeroFails(t *testing.T) {
	a := mustMoney(t, "1.00", "ZAR")
	b := mustMoney(t, "2.00", "ZAR")
	_, err := a.Subtract(b)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	zar := mustMoney(t, "10.00", "ZAR")
	usd := mustMoney(t, "10.00", "USD")

	_, err := zar.Add(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = zar.Subtract(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = zar.Cmp(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = zar.GreaterThan(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_Compare(t *testing.T) {
	small := mustMoney(t, "1.00", "ZAR")
	big := mustMoney(t, "2.00", "ZAR")

	gt, err := big.GreaterThan(small)
	require.NoError(t, err)
	assert.True(t, gt)

	lt, err := small.LessThan(big)
	require.NoError(t, err)
	assert.True(t, lt)

	assert.True(t, small.Equal(mustMoney(t, "1.00", "ZAR")))
	assert.False(t, small.Equal(big))
}

func TestMoney_MultiplyByRoundsPerConstructor(t *testing.T) {
	m := mustMoney(t, "100.00", "ZAR")
	scaled, err := m.MultiplyBy(decimal.NewFromFloat(0.0125))
	require.NoError(t, err)
	assert.Equal(t, "1.25 ZAR", scaled.String())

	// 10.00 * 0.1005 = 1.005 -> rounds up away from zero
	scaled, err = mustMoney(t, "10.00", "ZAR").MultiplyBy(decimal.NewFromFloat(0.1005))
	require.NoError(t, err)
	assert.Equal(t, "1.01 ZAR", scaled.String())
}

func TestZero_DefaultsToZAR(t *testing.T) {
	assert.Equal(t, "0.00 ZAR", Zero("").String())
	assert.Equal(t, "0.00 USD", Zero("usd").String())
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := mustMoney(t, "1234.56", "ZAR")
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"1234.56","currency":"ZAR"}`, string(raw))

	var back Money
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, m.Equal(back))
}
