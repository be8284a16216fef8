package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxScale is the number of decimal places an amount may carry. Amounts are
// stored as NUMERIC(19, 4).
const MaxScale = 4

// MaxAmount is the exclusive upper bound on the magnitude of an amount.
var MaxAmount = decimal.New(1, 15)

// Money is an amount in a single currency. The zero value is not a valid
// price; use NewMoney or ParseMoney.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney builds a Money value. The currency must be a three letter code,
// the amount must have at most MaxScale significant decimal places and its
// magnitude must stay below MaxAmount.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !isCurrencyCode(currency) {
		return Money{}, fmt.Errorf("%w: currency %q is not a three letter code", ErrInvalidPrice, currency)
	}
	scaled := amount.Truncate(MaxScale)
	if !scaled.Equal(amount) {
		return Money{}, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidPrice, amount, MaxScale)
	}
	if scaled.Abs().GreaterThanOrEqual(MaxAmount) {
		return Money{}, fmt.Errorf("%w: %s is out of range", ErrInvalidPrice, amount)
	}
	return Money{amount: scaled, currency: currency}, nil
}

// ParseMoney parses a decimal string such as "12.50".
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return NewMoney(d, currency)
}

// MustParseMoney is ParseMoney that panics on error. Intended for constants
// and tests.
func MustParseMoney(amount, currency string) Money {
	m, err := ParseMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

// IsZero reports whether m is the zero value (no currency set).
func (m Money) IsZero() bool {
	return m.currency == ""
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Compare returns -1, 0 or +1 when m is less than, equal to or greater than
// other. Values in different currencies are not comparable.
func (m Money) Compare(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return m.amount.Cmp(other.amount), nil
}

// Equal reports whether both values carry the same currency and amount.
// Trailing zeros are ignored, so 12.0 USD equals 12.00 USD.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String formats the amount with at least two decimals, and more only when
// the amount has sub-cent digits.
func (m Money) String() string {
	places := int32(2)
	for places < MaxScale && !m.amount.Equal(m.amount.Truncate(places)) {
		places++
	}
	return m.amount.StringFixed(places) + " " + m.currency
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

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

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
