package ingest

import "finman/internal/core"

// Status labels the overall outcome of one ingestion batch.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusError          Status = "error"
	StatusNoData         Status = "no_data"
)

// BatchResult summarizes one file upload or text submission.
// ProcessedCount counts attempted candidate records, valid or not;
// ProcessedExpenses carries the newly inserted records back to the caller so
// a client-side-storage deployment can mirror them without a re-fetch.
type BatchResult struct {
	Status            Status         `json:"status"`
	ProcessedCount    int            `json:"processed_count"`
	AddedCount        int            `json:"added_count"`
	SkippedCount      int            `json:"skipped_count"`
	Errors            []string       `json:"errors"`
	ProcessedExpenses []core.Expense `json:"processed_expenses"`
}

func emptyResult(status Status, errs ...string) BatchResult {
	r := BatchResult{
		Status:            status,
		Errors:            []string{},
		ProcessedExpenses: []core.Expense{},
	}
	r.Errors = append(r.Errors, errs...)
	return r
}

// deriveStatus implements the batch status policy: success needs at least
// one insert and no errors; partial_success needs an insert alongside
// errors; with nothing inserted, errors decide between error and no_data
// (so resubmitting an already-stored file reports no_data, not an error).
func deriveStatus(added int, errs []string) Status {
	switch {
	case added > 0 && len(errs) == 0:
		return StatusSuccess
	case added > 0:
		return StatusPartialSuccess
	case len(errs) > 0:
		return StatusError
	default:
		return StatusNoData
	}
}
