package storage

import (
	"context"
	"path/filepath"
	"testing"

	"finman/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "finman.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testExpense(t *testing.T, date, desc, value string) core.Expense {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	v, err := core.NewAmount(value)
	if err != nil {
		t.Fatalf("NewAmount: %v", err)
	}
	return core.NewExpense(d, desc, v)
}

func TestInsertAndListExpenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.InsertExpenses(ctx, []core.Expense{
		testExpense(t, "2024-01-05", "Coffee", "-4.50"),
		testExpense(t, "2024-01-10", "Salary", "3500"),
	})
	if err != nil {
		t.Fatalf("InsertExpenses: %v", err)
	}
	if len(inserted) != 2 {
		t.Fatalf("inserted = %d, want 2", len(inserted))
	}
	if inserted[0].ID == 0 || inserted[1].ID == 0 {
		t.Errorf("IDs not assigned: %+v", inserted)
	}

	all, err := repo.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list = %d, want 2", len(all))
	}
	// Newest date first.
	if all[0].Description != "Salary" || all[1].Description != "Coffee" {
		t.Errorf("order = %q, %q; want Salary first", all[0].Description, all[1].Description)
	}
	if all[1].Value.String() != "-4.5" {
		t.Errorf("value round trip = %s, want -4.5", all[1].Value)
	}
	if all[1].InOut != core.DirectionOut {
		t.Errorf("in_out = %q, want out", all[1].InOut)
	}
}

func TestListExpensesEmptyIsNonNil(t *testing.T) {
	repo := newTestRepo(t)

	all, err := repo.ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if all == nil {
		t.Error("list on empty store = nil, want empty slice")
	}
	if len(all) != 0 {
		t.Errorf("list = %d, want 0", len(all))
	}
}

func TestDeleteAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.InsertExpenses(ctx, []core.Expense{
		testExpense(t, "2024-01-05", "Coffee", "-4.50"),
		testExpense(t, "2024-01-06", "Lunch", "-9"),
	}); err != nil {
		t.Fatalf("InsertExpenses: %v", err)
	}

	deleted, err := repo.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	all, err := repo.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("list after delete = %d, want 0", len(all))
	}
}

func TestMirrorBookkeeping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.InsertExpenses(ctx, []core.Expense{
		testExpense(t, "2024-01-05", "Coffee", "-4.50"),
		testExpense(t, "2024-01-06", "Lunch", "-9"),
	})
	if err != nil {
		t.Fatalf("InsertExpenses: %v", err)
	}

	pending, err := repo.ListUnmirrored(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnmirrored: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	if err := repo.MarkMirrored(ctx, inserted[0].ID); err != nil {
		t.Fatalf("MarkMirrored: %v", err)
	}

	pending, err = repo.ListUnmirrored(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnmirrored: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != inserted[1].ID {
		t.Errorf("pending = %+v, want only second expense", pending)
	}
}

func TestGetExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inserted, err := repo.InsertExpenses(ctx, []core.Expense{
		testExpense(t, "2024-01-05", "Coffee", "-4.50"),
	})
	if err != nil {
		t.Fatalf("InsertExpenses: %v", err)
	}

	got, err := repo.GetExpense(ctx, inserted[0].ID)
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if got.Key() != inserted[0].Key() {
		t.Errorf("got %+v, want %+v", got, inserted[0])
	}

	if _, err := repo.GetExpense(ctx, 9999); err == nil {
		t.Error("expected error for missing ID")
	}
}
