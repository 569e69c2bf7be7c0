package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a signed decimal monetary value. It wraps shopspring/decimal so
// equality used for deduplication is exact ("4.50" and "4.5" compare equal)
// and marshals to JSON as a plain number rather than a quoted string.
type Amount struct {
	decimal.Decimal
}

var ErrInvalidAmount = errors.New("invalid amount")

// NewAmount parses a plain decimal string such as "-12.50".
func NewAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{Decimal: d}, nil
}

// AmountFromFloat converts a float64, for values decoded from JSON numbers.
func AmountFromFloat(f float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(f)}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := NewAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Equal(b.Decimal)
}
