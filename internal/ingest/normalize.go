package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finman/internal/core"
)

// Per-record rejection reasons. These are collected as batch error messages
// and never abort processing of the remaining records.
var (
	ErrUnparseableDate  = errors.New("unparseable date")
	ErrUnparseableValue = errors.New("unparseable value")
	ErrEmptyDescription = errors.New("empty description")
)

// normalize coerces one raw record into a valid expense or returns a typed
// rejection. The sign of the value is trusted as-is; the pipeline never
// infers expense-vs-income from keywords.
func normalize(raw RawRecord) (core.Expense, error) {
	date, err := parseDate(raw.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w %q", ErrUnparseableDate, raw.Date)
	}

	value, err := parseValue(raw.Value)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w %q", ErrUnparseableValue, raw.Value)
	}

	desc := strings.TrimSpace(raw.Description)
	if desc == "" {
		return core.Expense{}, ErrEmptyDescription
	}

	e := core.NewExpense(date, desc, value)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// parseDate accepts YYYY-MM-DD and slash notations. Slash dates are read as
// MM/DD/YYYY first; when the first component exceeds 12 the date is re-read
// as DD/MM/YYYY.
func parseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, core.ErrInvalidDate
	}

	if d, err := core.ParseDate(s); err == nil {
		return d, nil
	}

	for _, layout := range []string{"1/2/2006", "2/1/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return core.Date{}, core.ErrInvalidDate
}

// parseValue strips currency symbols and thousands separators, honoring a
// leading minus sign or the parenthesized-negative convention used by many
// bank exports: "($1,234.56)" -> -1234.56.
func parseValue(s string) (core.Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Amount{}, core.ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			b.WriteRune(r)
		case r == ',', r == '$', r == '€', r == '£', r == ' ':
			// thousands separators and currency symbols
		default:
			return core.Amount{}, core.ErrInvalidAmount
		}
	}
	cleaned := b.String()

	// Reject stray signs so "1-2" does not slip through strconv's parser.
	if strings.LastIndexAny(cleaned, "+-") > 0 {
		return core.Amount{}, core.ErrInvalidAmount
	}
	if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
		return core.Amount{}, core.ErrInvalidAmount
	}

	amount, err := core.NewAmount(cleaned)
	if err != nil {
		return core.Amount{}, err
	}
	if negative {
		amount = core.Amount{Decimal: amount.Neg()}
	}
	return amount, nil
}
