package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// DirectionIn marks income (non-negative value).
	DirectionIn = "in"
	// DirectionOut marks an outflow (negative value).
	DirectionOut = "out"
)

type (
	// Date is a calendar date with no time component. It marshals as
	// "YYYY-MM-DD" and is always anchored at UTC midnight internally.
	Date struct {
		time.Time
	}

	// Expense is a single stored transaction. Value is signed: negative
	// means money out, non-negative means money in. InOut is derived from
	// the sign and never trusted from input.
	Expense struct {
		ID          int64  `json:"id,omitempty"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
		Value       Amount `json:"value"`
		InOut       string `json:"in_out"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewExpense builds an expense from already-normalized fields, trimming the
// description and deriving the in/out direction from the value's sign.
func NewExpense(date Date, description string, value Amount) Expense {
	e := Expense{
		Date:        date,
		Description: strings.TrimSpace(description),
		Value:       value,
	}
	e.InOut = directionOf(value)
	return e
}

func directionOf(v Amount) string {
	if v.IsNegative() {
		return DirectionOut
	}
	return DirectionIn
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len([]rune(e.Description)) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

// Key is the duplicate-detection identity: same calendar date, same
// description ignoring case and surrounding whitespace, same exact value.
func (e Expense) Key() string {
	desc := strings.ToLower(strings.TrimSpace(e.Description))
	return e.Date.String() + "\x1f" + desc + "\x1f" + e.Value.String()
}
