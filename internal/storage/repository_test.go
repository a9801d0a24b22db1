package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tallybook/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, username string, role core.Role) core.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), core.User{
		Username:     username,
		PasswordHash: "hash",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func seedTransaction(t *testing.T, repo *SQLiteRepository, kind core.Kind, cents int64, date time.Time, userID int64) core.Transaction {
	t.Helper()
	tx, err := repo.CreateTransaction(context.Background(), core.Transaction{
		Kind:        kind,
		Amount:      core.Money{Cents: cents},
		PaymentType: core.Cash,
		Date:        date,
		CreatedBy:   userID,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", kind, err)
	}
	return tx
}

func TestCreateUserUniqueUsername(t *testing.T) {
	repo := newTestRepo(t)
	seedUser(t, repo, "alice", core.RoleUser)

	_, err := repo.CreateUser(context.Background(), core.User{
		Username:     "alice",
		PasswordHash: "other",
		Role:         core.RoleUser,
	})
	if err != ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	repo := newTestRepo(t)
	created := seedUser(t, repo, "bob", core.RoleAdmin)

	got, err := repo.GetUserByUsername(context.Background(), "bob")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != created.ID || got.Role != core.RoleAdmin {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := repo.GetUserByUsername(context.Background(), "nobody"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAndGetTransaction(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo, "alice", core.RoleUser)
	date := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	created, err := repo.CreateTransaction(context.Background(), core.Transaction{
		Kind:        core.KindSale,
		Amount:      core.Money{Cents: 10000},
		PaymentType: core.BankTransfer,
		Note:        "invoice 42",
		Date:        date,
		CreatedBy:   user.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if created.CreatedByName != "alice" {
		t.Fatalf("creator name = %q, want alice", created.CreatedByName)
	}
	if !created.Date.Equal(date) {
		t.Fatalf("date = %v, want %v", created.Date, date)
	}

	got, err := repo.GetTransaction(context.Background(), core.KindSale, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 10000 || got.Note != "invoice 42" {
		t.Fatalf("unexpected transaction: %+v", got)
	}

	// Kind is part of the identity: a sale id is not an expense id.
	if _, err := repo.GetTransaction(context.Background(), core.KindExpense, created.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound across kinds, got %v", err)
	}
}

func TestListTransactionsOrderAndFilters(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo, "alice", core.RoleUser)
	ctx := context.Background()

	jan10 := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	jan15 := time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)
	jan20 := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	seedTransaction(t, repo, core.KindSale, 1000, jan10, user.ID)
	seedTransaction(t, repo, core.KindSale, 2000, jan20, user.ID)
	seedTransaction(t, repo, core.KindSale, 3000, jan15, user.ID)
	seedTransaction(t, repo, core.KindExpense, 9999, jan15, user.ID)

	all, err := repo.ListTransactions(ctx, core.KindSale, ListFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Date.After(all[i-1].Date) {
			t.Fatalf("not sorted by date desc: %v before %v", all[i-1].Date, all[i].Date)
		}
	}

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	byDay, err := repo.ListTransactions(ctx, core.KindSale, ListFilter{Day: &day})
	if err != nil {
		t.Fatalf("list by day: %v", err)
	}
	// The 23:30 record still belongs to Jan 15.
	if len(byDay) != 1 || byDay[0].Amount.Cents != 3000 {
		t.Fatalf("day filter returned %+v", byDay)
	}

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	byRange, err := repo.ListTransactions(ctx, core.KindSale, ListFilter{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("list by range: %v", err)
	}
	// Inclusive range: both Jan 10 and the Jan 15 23:30 record match.
	if len(byRange) != 2 {
		t.Fatalf("range filter len = %d, want 2", len(byRange))
	}

	// Day wins when both are supplied.
	both, err := repo.ListTransactions(ctx, core.KindSale, ListFilter{Day: &day, Start: &start, End: &end})
	if err != nil {
		t.Fatalf("list with both: %v", err)
	}
	if len(both) != 1 {
		t.Fatalf("day precedence: len = %d, want 1", len(both))
	}
}

func TestUpdateTransaction(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo, "alice", core.RoleUser)
	ctx := context.Background()
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	created, err := repo.CreateTransaction(ctx, core.Transaction{
		Kind:        core.KindExpense,
		Amount:      core.Money{Cents: 500},
		PaymentType: core.Cash,
		Date:        date,
		Attachment:  "old.pdf",
		CreatedBy:   user.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.MarkExported(ctx, created.ID); err != nil {
		t.Fatalf("mark exported: %v", err)
	}

	created.Amount = core.Money{Cents: 750}
	created.Note = "corrected"
	updated, err := repo.UpdateTransaction(ctx, created, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != 750 || updated.Note != "corrected" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if updated.Attachment != "old.pdf" {
		t.Fatalf("attachment should be preserved, got %q", updated.Attachment)
	}

	// The update re-queued the record for export.
	pending, err := repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Fatalf("expected record re-queued, got %+v", pending)
	}

	created.Attachment = "new.pdf"
	updated, err = repo.UpdateTransaction(ctx, created, true)
	if err != nil {
		t.Fatalf("update with attachment: %v", err)
	}
	if updated.Attachment != "new.pdf" {
		t.Fatalf("attachment = %q, want new.pdf", updated.Attachment)
	}

	created.ID = 9999
	if _, err := repo.UpdateTransaction(ctx, created, false); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTransaction(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo, "alice", core.RoleUser)
	ctx := context.Background()

	tx := seedTransaction(t, repo, core.KindSale, 100, time.Now(), user.ID)

	deleted, err := repo.DeleteTransaction(ctx, core.KindSale, tx.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != tx.ID {
		t.Fatalf("deleted id = %d, want %d", deleted.ID, tx.ID)
	}
	if _, err := repo.GetTransaction(ctx, core.KindSale, tx.ID); err != ErrNotFound {
		t.Fatalf("expected record gone, got %v", err)
	}
	if _, err := repo.DeleteTransaction(ctx, core.KindSale, tx.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDaySummary(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo, "alice", core.RoleUser)
	ctx := context.Background()
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	seedTransaction(t, repo, core.KindSale, 10000, day.Add(9*time.Hour), user.ID)
	seedTransaction(t, repo, core.KindExpense, 4000, day.Add(18*time.Hour), user.ID)
	// Next day, must not count.
	seedTransaction(t, repo, core.KindSale, 77700, day.AddDate(0, 0, 1), user.ID)

	summary, err := repo.DaySummary(ctx, day)
	if err != nil {
		t.Fatalf("day summary: %v", err)
	}
	if summary.TotalSales.Cents != 10000 {
		t.Errorf("total sales = %d, want 10000", summary.TotalSales.Cents)
	}
	if summary.TotalExpenses.Cents != 4000 {
		t.Errorf("total expenses = %d, want 4000", summary.TotalExpenses.Cents)
	}
	if summary.RemainingBalance().Cents != 6000 {
		t.Errorf("remaining balance = %d, want 6000", summary.RemainingBalance().Cents)
	}
	if summary.SalesCount != 1 || summary.ExpensesCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", summary.SalesCount, summary.ExpensesCount)
	}
}

func TestDaySummaryCountsMultipleSales(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo, "alice", core.RoleUser)
	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	seedTransaction(t, repo, core.KindSale, 5000, day, user.ID)
	seedTransaction(t, repo, core.KindSale, 7500, day.Add(4*time.Hour), user.ID)

	summary, err := repo.DaySummary(context.Background(), day)
	if err != nil {
		t.Fatalf("day summary: %v", err)
	}
	if summary.TotalSales.Cents != 12500 || summary.SalesCount != 2 {
		t.Fatalf("sales = %d cents / %d records, want 12500/2", summary.TotalSales.Cents, summary.SalesCount)
	}
}

func TestDaySummaryEmptyDayIsZeros(t *testing.T) {
	repo := newTestRepo(t)

	summary, err := repo.DaySummary(context.Background(), time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("day summary: %v", err)
	}
	if summary.TotalSales.Cents != 0 || summary.TotalExpenses.Cents != 0 ||
		summary.SalesCount != 0 || summary.ExpensesCount != 0 {
		t.Fatalf("expected all zeros, got %+v", summary)
	}
}

func TestMonthSummary(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo, "alice", core.RoleUser)

	seedTransaction(t, repo, core.KindSale, 10000, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), user.ID)
	seedTransaction(t, repo, core.KindSale, 5000, time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC), user.ID)
	seedTransaction(t, repo, core.KindExpense, 4000, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), user.ID)
	// February, out of range.
	seedTransaction(t, repo, core.KindSale, 11111, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), user.ID)

	summary, err := repo.MonthSummary(context.Background(), 2024, 1)
	if err != nil {
		t.Fatalf("month summary: %v", err)
	}
	if summary.TotalSales.Cents != 15000 {
		t.Errorf("total sales = %d, want 15000", summary.TotalSales.Cents)
	}
	if summary.TotalExpenses.Cents != 4000 {
		t.Errorf("total expenses = %d, want 4000", summary.TotalExpenses.Cents)
	}
	if summary.NetProfit().Cents != 11000 {
		t.Errorf("net profit = %d, want 11000", summary.NetProfit().Cents)
	}
	if summary.Period() != "2024-01" {
		t.Errorf("period = %q, want 2024-01", summary.Period())
	}
}

func TestExportStateFlow(t *testing.T) {
	repo := newTestRepo(t)
	user := seedUser(t, repo, "alice", core.RoleUser)
	ctx := context.Background()

	first := seedTransaction(t, repo, core.KindSale, 100, time.Now(), user.ID)
	second := seedTransaction(t, repo, core.KindExpense, 200, time.Now(), user.ID)

	pending, err := repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending len = %d, want 2", len(pending))
	}

	if err := repo.MarkExported(ctx, first.ID); err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	if err := repo.MarkExportError(ctx, second.ID); err != nil {
		t.Fatalf("mark export error: %v", err)
	}

	pending, err = repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("pending after marks: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending len = %d, want 0", len(pending))
	}
}
