// Package ingest implements the expense ingestion pipeline: parsing an
// uploaded file or pasted text into raw records, normalizing them into
// expenses, filtering duplicates and persisting what remains. Each stage
// rejects individual records without aborting the batch.
package ingest

import (
	"context"

	"finman/internal/core"
)

// Store is the persistence contract the pipeline needs. Which implementation
// backs it (SQLite, in-memory) is a deployment choice made by the backend
// factory.
type Store interface {
	// ListExpenses returns all stored expenses sorted by date descending.
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	// InsertExpenses persists the given expenses and returns them with
	// storage-assigned IDs, in input order.
	InsertExpenses(ctx context.Context, expenses []core.Expense) ([]core.Expense, error)
	// DeleteAll removes every stored expense and returns the count removed.
	DeleteAll(ctx context.Context) (int64, error)
}

// RawRecord is one candidate record before normalization. Line is the
// physical file line for CSV input (the header is line 1), or the 1-based
// item index for extracted text.
type RawRecord struct {
	Line        int
	Date        string
	Description string
	Value       string
}

// Extractor turns unstructured text into candidate records. The production
// implementation calls an LLM; tests use a deterministic stub.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]RawRecord, error)
}

// EventPublisher is notified after each successful insert. Publishing is
// best-effort: failures are logged and never affect the batch outcome.
type EventPublisher interface {
	PublishExpenseStored(ctx context.Context, id int64) error
}
