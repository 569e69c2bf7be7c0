// Package worker mirrors stored expenses to Google Sheets. It reacts to
// AMQP notifications and periodically drains rows the broker missed.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finman/internal/amqp"
	"finman/internal/core"
	"finman/internal/sheets"
	"finman/internal/storage"
)

type MirrorWorker struct {
	storage   *storage.SQLiteRepository
	target    sheets.Appender
	batchSize int
}

func NewMirrorWorker(storage *storage.SQLiteRepository, target sheets.Appender, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &MirrorWorker{
		storage:   storage,
		target:    target,
		batchSize: batchSize,
	}
}

// HandleStoredMessage mirrors the expense named by one AMQP notification.
func (w *MirrorWorker) HandleStoredMessage(ctx context.Context, msg *amqp.ExpenseStoredMessage) error {
	expense, err := w.storage.GetExpense(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if err := w.mirrorExpense(ctx, expense); err != nil {
		return fmt.Errorf("mirror expense: %w", err)
	}
	return nil
}

// DrainPending mirrors expenses that have no notification in flight.
// This is the backup path for lost AMQP messages and worker downtime.
func (w *MirrorWorker) DrainPending(ctx context.Context) error {
	pending, err := w.storage.ListUnmirrored(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unmirrored expenses: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Draining unmirrored expenses", "count", len(pending))

	for _, e := range pending {
		if err := w.mirrorExpense(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror expense", "id", e.ID, "error", err)
			continue
		}
	}
	return nil
}

// RunDrainLoop drains pending rows on startup and then on every tick until
// ctx is cancelled.
func (w *MirrorWorker) RunDrainLoop(ctx context.Context, interval time.Duration) error {
	if err := w.DrainPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup drain failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.DrainPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic drain failed", "error", err)
			}
		}
	}
}

func (w *MirrorWorker) mirrorExpense(ctx context.Context, expense core.Expense) error {
	ref, err := w.target.Append(ctx, expense)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.storage.MarkMirrored(ctx, expense.ID); err != nil {
		// The append succeeded; the row will be retried and the sheet may
		// end up with a duplicate, which is acceptable for an export.
		slog.ErrorContext(ctx, "Failed to mark expense as mirrored", "id", expense.ID, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Mirrored expense",
		"id", expense.ID,
		"sheets_ref", ref,
		"description", expense.Description)

	return nil
}
