package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"finman/internal/amqp"
	"finman/internal/core"
	"finman/internal/storage"
)

type fakeAppender struct {
	mu      sync.Mutex
	rows    []core.Expense
	failMsg string
}

func (f *fakeAppender) Append(_ context.Context, e core.Expense) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMsg != "" {
		return "", errors.New(f.failMsg)
	}
	f.rows = append(f.rows, e)
	return "Expenses!A1:D1", nil
}

func setup(t *testing.T) (*storage.SQLiteRepository, []core.Expense) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "finman.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	d1, _ := core.ParseDate("2024-01-05")
	d2, _ := core.ParseDate("2024-01-06")
	v1, _ := core.NewAmount("-4.50")
	v2, _ := core.NewAmount("-9")
	inserted, err := repo.InsertExpenses(context.Background(), []core.Expense{
		core.NewExpense(d1, "Coffee", v1),
		core.NewExpense(d2, "Lunch", v2),
	})
	if err != nil {
		t.Fatalf("InsertExpenses: %v", err)
	}
	return repo, inserted
}

func TestHandleStoredMessage(t *testing.T) {
	repo, inserted := setup(t)
	target := &fakeAppender{}
	w := NewMirrorWorker(repo, target, 10)
	ctx := context.Background()

	msg := amqp.NewExpenseStoredMessage(inserted[0].ID)
	if err := w.HandleStoredMessage(ctx, msg); err != nil {
		t.Fatalf("HandleStoredMessage: %v", err)
	}

	if len(target.rows) != 1 || target.rows[0].Description != "Coffee" {
		t.Fatalf("mirrored rows = %+v", target.rows)
	}

	pending, err := repo.ListUnmirrored(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnmirrored: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != inserted[1].ID {
		t.Errorf("pending = %+v, want only second expense", pending)
	}
}

func TestHandleStoredMessageMissingExpense(t *testing.T) {
	repo, _ := setup(t)
	w := NewMirrorWorker(repo, &fakeAppender{}, 10)

	msg := amqp.NewExpenseStoredMessage(9999)
	if err := w.HandleStoredMessage(context.Background(), msg); err == nil {
		t.Error("expected error for missing expense")
	}
}

func TestDrainPending(t *testing.T) {
	repo, _ := setup(t)
	target := &fakeAppender{}
	w := NewMirrorWorker(repo, target, 10)
	ctx := context.Background()

	if err := w.DrainPending(ctx); err != nil {
		t.Fatalf("DrainPending: %v", err)
	}
	if len(target.rows) != 2 {
		t.Fatalf("mirrored = %d, want 2", len(target.rows))
	}

	pending, err := repo.ListUnmirrored(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnmirrored: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %+v, want none", pending)
	}
}

func TestDrainPendingKeepsRowsOnAppendFailure(t *testing.T) {
	repo, _ := setup(t)
	target := &fakeAppender{failMsg: "sheets unavailable"}
	w := NewMirrorWorker(repo, target, 10)
	ctx := context.Background()

	if err := w.DrainPending(ctx); err != nil {
		t.Fatalf("DrainPending: %v", err)
	}

	pending, err := repo.ListUnmirrored(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnmirrored: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %d, want 2 (nothing marked mirrored)", len(pending))
	}
}
