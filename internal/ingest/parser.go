package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Errors that abort the whole batch before any record is processed.
var (
	ErrNotUTF8   = errors.New("file is not valid UTF-8 text")
	ErrBadHeader = errors.New("unrecognized CSV header")
)

// Recognized header names, compared case-insensitively after trimming.
var (
	dateHeaders  = []string{"date", "transaction date", "posted date", "booking date"}
	descHeaders  = []string{"description", "desc", "details", "memo", "narrative", "payee"}
	valueHeaders = []string{"value", "amount", "amt", "sum"}
)

type columnMap struct {
	date, desc, value int
}

// parseCSV reads a headered CSV payload into raw records. Malformed rows
// become per-row error messages naming the physical file line (the header is
// line 1); only an unreadable payload or a header with no recognizable
// date/description/value columns fails the whole batch.
func parseCSV(data []byte) ([]RawRecord, []string, error) {
	if !utf8.Valid(data) {
		return nil, nil, ErrNotUTF8
	}

	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read CSV header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		records []RawRecord
		rowErrs []string
		line    = 2 // physical file line; the header is line 1
	)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("line %d: malformed CSV row: %v", line, err))
			line++
			continue
		}
		rec, err := rowToRecord(row, cols, line)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("line %d: %v", line, err))
			line++
			continue
		}
		records = append(records, rec)
		line++
	}

	return records, rowErrs, nil
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{date: -1, desc: -1, value: -1}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case cols.date < 0 && contains(dateHeaders, name):
			cols.date = i
		case cols.desc < 0 && contains(descHeaders, name):
			cols.desc = i
		case cols.value < 0 && contains(valueHeaders, name):
			cols.value = i
		}
	}
	switch {
	case cols.date < 0:
		return cols, fmt.Errorf("%w: no date column", ErrBadHeader)
	case cols.desc < 0:
		return cols, fmt.Errorf("%w: no description column", ErrBadHeader)
	case cols.value < 0:
		return cols, fmt.Errorf("%w: no value or amount column", ErrBadHeader)
	}
	return cols, nil
}

func rowToRecord(row []string, cols columnMap, line int) (RawRecord, error) {
	get := func(idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	rec := RawRecord{
		Line:        line,
		Date:        get(cols.date),
		Description: get(cols.desc),
		Value:       get(cols.value),
	}
	if rec.Description == "" && rec.Value == "" {
		return RawRecord{}, errors.New("missing description and value")
	}
	if rec.Value == "" {
		return RawRecord{}, errors.New("missing value")
	}
	if rec.Description == "" {
		return RawRecord{}, errors.New("missing description")
	}
	return rec, nil
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
