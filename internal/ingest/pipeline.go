package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"finman/internal/core"
)

var (
	// ErrUnsupportedFile is returned for uploads that are neither .csv nor .txt.
	ErrUnsupportedFile = errors.New("unsupported file type (expected .csv or .txt)")
	// ErrExtractorUnavailable wraps extractor transport failures so the HTTP
	// layer can answer 503 instead of blaming the input.
	ErrExtractorUnavailable = errors.New("text extractor unavailable")
)

// Service orchestrates one ingestion batch to completion: parse or extract,
// normalize, deduplicate, persist, aggregate. One batch is processed
// synchronously within the calling request; the store is the only shared
// state it touches.
type Service struct {
	store     Store
	extractor Extractor
	events    EventPublisher
}

// NewService wires the pipeline. events may be nil to disable notifications.
func NewService(store Store, extractor Extractor, events EventPublisher) *Service {
	return &Service{store: store, extractor: extractor, events: events}
}

// IngestFile dispatches on the file extension: .csv goes through the CSV
// parser, .txt is handed to the extractor as one whole-blob call. A non-nil
// error means infrastructure failure (store or extractor), not bad input.
func (s *Service) IngestFile(ctx context.Context, data []byte, filename string) (BatchResult, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return s.ingestCSV(ctx, data, filename)
	case ".txt":
		return s.IngestText(ctx, string(data))
	default:
		return BatchResult{}, fmt.Errorf("%w: %q", ErrUnsupportedFile, filename)
	}
}

func (s *Service) ingestCSV(ctx context.Context, data []byte, filename string) (BatchResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		slog.WarnContext(ctx, "Empty file uploaded", "filename", filename)
		return emptyResult(StatusNoData), nil
	}

	raws, rowErrs, err := parseCSV(data)
	if err != nil {
		slog.WarnContext(ctx, "CSV batch rejected", "filename", filename, "error", err)
		return emptyResult(StatusError, err.Error()), nil
	}

	return s.runBatch(ctx, raws, rowErrs, "line")
}

// IngestText routes pasted or .txt text through the extractor. Blank input
// short-circuits to no_data without an extractor call.
func (s *Service) IngestText(ctx context.Context, text string) (BatchResult, error) {
	if strings.TrimSpace(text) == "" {
		return emptyResult(StatusNoData), nil
	}

	raws, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", ErrExtractorUnavailable, err)
	}
	slog.InfoContext(ctx, "Extractor returned candidates", "count", len(raws))

	return s.runBatch(ctx, raws, nil, "item")
}

// runBatch is the shared tail of both ingestion paths: normalize each raw
// record, partition against stored and in-batch duplicates, insert, publish,
// and aggregate counts into one BatchResult.
func (s *Service) runBatch(ctx context.Context, raws []RawRecord, priorErrs []string, label string) (BatchResult, error) {
	result := emptyResult(StatusNoData, priorErrs...)
	result.ProcessedCount = len(raws) + len(priorErrs)

	var candidates []core.Expense
	for _, raw := range raws {
		expense, err := normalize(raw)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %d: %v", label, raw.Line, err))
			continue
		}
		candidates = append(candidates, expense)
	}

	if len(candidates) == 0 {
		result.Status = deriveStatus(0, result.Errors)
		return result, nil
	}

	existing, err := s.store.ListExpenses(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list stored expenses: %w", err)
	}

	toInsert, skipped := partition(candidates, existing)
	result.SkippedCount = len(skipped)

	if len(toInsert) > 0 {
		inserted, err := s.store.InsertExpenses(ctx, toInsert)
		if err != nil {
			return BatchResult{}, fmt.Errorf("insert expenses: %w", err)
		}
		result.AddedCount = len(inserted)
		result.ProcessedExpenses = inserted
		s.publishStored(ctx, inserted)
	}

	result.Status = deriveStatus(result.AddedCount, result.Errors)
	slog.InfoContext(ctx, "Batch processed",
		"status", result.Status,
		"processed", result.ProcessedCount,
		"added", result.AddedCount,
		"skipped", result.SkippedCount,
		"errors", len(result.Errors))
	return result, nil
}

// publishStored notifies the event publisher of each insert. Failures are
// logged and swallowed: the records are already persisted.
func (s *Service) publishStored(ctx context.Context, inserted []core.Expense) {
	if s.events == nil {
		return
	}
	for _, e := range inserted {
		if err := s.events.PublishExpenseStored(ctx, e.ID); err != nil {
			slog.WarnContext(ctx, "Failed to publish expense-stored event", "id", e.ID, "error", err)
		}
	}
}

// ListAll returns every stored expense, date descending.
func (s *Service) ListAll(ctx context.Context) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx)
}

// ClearAll bulk-deletes all stored expenses and returns the deleted count.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete all expenses: %w", err)
	}
	slog.InfoContext(ctx, "Cleared all expenses", "deleted", deleted)
	return deleted, nil
}
