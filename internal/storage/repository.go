// Package storage persists users and transactions in SQLite and
// answers the listing and aggregation queries the API is built on.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tallybook/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// Export states for the sheets ledger backup.
const (
	ExportPending  = "pending"
	ExportExported = "exported"
	ExportError    = "error"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// ListFilter selects at most one of the three listing modes: a single
// calendar day, an inclusive date range, or everything. Day wins when
// both are set.
type ListFilter struct {
	Day   *time.Time
	Start *time.Time
	End   *time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// CreateUser inserts a new user and returns it with its id assigned.
func (r *SQLiteRepository) CreateUser(ctx context.Context, user core.User) (core.User, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		user.Username, user.PasswordHash, string(user.Role), formatTime(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.User{}, ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user insert id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now.UTC()

	slog.InfoContext(ctx, "User created", "user_id", id, "username", user.Username, "role", user.Role)
	return user, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`, username))
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	var role, createdAt string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = core.Role(role)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

const transactionColumns = `t.id, t.kind, t.amount_cents, t.payment_type, t.note, t.attachment,
	t.date, t.created_by, u.username, t.created_at, t.updated_at`

// CreateTransaction inserts a record and returns it with id, creator
// name and timestamps filled in.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (kind, amount_cents, payment_type, note, attachment, date, created_by, export_state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.Kind), tx.Amount.Cents, string(tx.PaymentType), tx.Note, tx.Attachment,
		formatTime(tx.Date), tx.CreatedBy, ExportPending, formatTime(now), formatTime(now))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction insert id: %w", err)
	}

	created, err := r.GetTransaction(ctx, tx.Kind, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read back transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", id,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents,
		"payment_type", tx.PaymentType)
	return created, nil
}

// GetTransaction fetches one record of the given kind with the creator
// resolved. Returns ErrNotFound when the id does not exist under that
// kind.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, kind core.Kind, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t JOIN users u ON u.id = t.created_by
		 WHERE t.id = ? AND t.kind = ?`, id, string(kind))
	return scanTransaction(row)
}

// GetTransactionByID fetches a record regardless of kind. Used by the
// export worker, whose queue messages already carry the kind.
func (r *SQLiteRepository) GetTransactionByID(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t JOIN users u ON u.id = t.created_by
		 WHERE t.id = ?`, id)
	return scanTransaction(row)
}

// ListTransactions returns all records of one kind matching the filter,
// newest date first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, kind core.Kind, filter ListFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		 FROM transactions t JOIN users u ON u.id = t.created_by
		 WHERE t.kind = ?`
	args := []any{string(kind)}

	switch {
	case filter.Day != nil:
		start := core.StartOfDay(*filter.Day)
		query += ` AND t.date >= ? AND t.date < ?`
		args = append(args, formatTime(start), formatTime(start.AddDate(0, 0, 1)))
	case filter.Start != nil && filter.End != nil:
		// Inclusive range: the end bound covers the whole end day.
		start := core.StartOfDay(*filter.Start)
		end := core.StartOfDay(*filter.End).AddDate(0, 0, 1)
		query += ` AND t.date >= ? AND t.date < ?`
		args = append(args, formatTime(start), formatTime(end))
	}

	query += ` ORDER BY t.date DESC, t.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// UpdateTransaction replaces the mutable fields of a record. The
// attachment column is only touched when replaceAttachment is set;
// otherwise the stored reference is preserved unchanged. The record is
// re-queued for export.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction, replaceAttachment bool) (core.Transaction, error) {
	now := time.Now()

	var res sql.Result
	var err error
	if replaceAttachment {
		res, err = r.db.ExecContext(ctx,
			`UPDATE transactions
			 SET amount_cents = ?, payment_type = ?, note = ?, date = ?, attachment = ?, export_state = ?, updated_at = ?
			 WHERE id = ? AND kind = ?`,
			tx.Amount.Cents, string(tx.PaymentType), tx.Note, formatTime(tx.Date), tx.Attachment,
			ExportPending, formatTime(now), tx.ID, string(tx.Kind))
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE transactions
			 SET amount_cents = ?, payment_type = ?, note = ?, date = ?, export_state = ?, updated_at = ?
			 WHERE id = ? AND kind = ?`,
			tx.Amount.Cents, string(tx.PaymentType), tx.Note, formatTime(tx.Date),
			ExportPending, formatTime(now), tx.ID, string(tx.Kind))
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, ErrNotFound
	}

	updated, err := r.GetTransaction(ctx, tx.Kind, tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read back transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "transaction_id", tx.ID, "kind", tx.Kind)
	return updated, nil
}

// DeleteTransaction permanently removes a record and returns the state
// it had, so callers can invalidate caches and clean up attachments.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, kind core.Kind, id int64) (core.Transaction, error) {
	deleted, err := r.GetTransaction(ctx, kind, id)
	if err != nil {
		return core.Transaction{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND kind = ?`, id, string(kind))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id, "kind", kind)
	return deleted, nil
}

// DaySummary aggregates sums and counts for the day containing t. Zero
// matching rows yield zero sums and counts, never an error.
func (r *SQLiteRepository) DaySummary(ctx context.Context, day time.Time) (core.DaySummary, error) {
	start := core.StartOfDay(day)
	summary := core.DaySummary{Date: start}

	err := r.aggregate(ctx, start, start.AddDate(0, 0, 1),
		&summary.TotalSales.Cents, &summary.TotalExpenses.Cents,
		&summary.SalesCount, &summary.ExpensesCount)
	if err != nil {
		return core.DaySummary{}, fmt.Errorf("day summary: %w", err)
	}
	return summary, nil
}

// MonthSummary aggregates a full calendar month.
func (r *SQLiteRepository) MonthSummary(ctx context.Context, year, month int) (core.MonthSummary, error) {
	start, end := core.MonthRange(year, month)
	summary := core.MonthSummary{Year: year, Month: month}

	var salesCount, expensesCount int64
	err := r.aggregate(ctx, start, end,
		&summary.TotalSales.Cents, &summary.TotalExpenses.Cents,
		&salesCount, &expensesCount)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("month summary: %w", err)
	}
	return summary, nil
}

func (r *SQLiteRepository) aggregate(ctx context.Context, start, end time.Time,
	salesCents, expensesCents, salesCount, expensesCount *int64) error {

	return r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN kind = 'sale' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0),
			COUNT(CASE WHEN kind = 'sale' THEN 1 END),
			COUNT(CASE WHEN kind = 'expense' THEN 1 END)
		 FROM transactions
		 WHERE date >= ? AND date < ?`,
		formatTime(start), formatTime(end),
	).Scan(salesCents, expensesCents, salesCount, expensesCount)
}

// GetPendingExport returns up to limit transactions waiting for the
// sheets ledger backup, oldest first.
func (r *SQLiteRepository) GetPendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t JOIN users u ON u.id = t.created_by
		 WHERE t.export_state = ?
		 ORDER BY t.id ASC
		 LIMIT ?`, ExportPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending export: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending export: %w", err)
	}
	return txs, nil
}

// MarkExported records a successful ledger backup for a transaction.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	return r.setExportState(ctx, id, ExportExported)
}

// MarkExportError records a failed ledger backup attempt.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	return r.setExportState(ctx, id, ExportError)
}

func (r *SQLiteRepository) setExportState(ctx context.Context, id int64, state string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET export_state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("set export state: %w", err)
	}
	return nil
}

func scanTransaction(row *sql.Row) (core.Transaction, error) {
	var tx core.Transaction
	var kind, paymentType, date, createdAt, updatedAt string
	err := row.Scan(&tx.ID, &kind, &tx.Amount.Cents, &paymentType, &tx.Note, &tx.Attachment,
		&date, &tx.CreatedBy, &tx.CreatedByName, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	fillTransaction(&tx, kind, paymentType, date, createdAt, updatedAt)
	return tx, nil
}

func scanTransactionRows(rows *sql.Rows) (core.Transaction, error) {
	var tx core.Transaction
	var kind, paymentType, date, createdAt, updatedAt string
	err := rows.Scan(&tx.ID, &kind, &tx.Amount.Cents, &paymentType, &tx.Note, &tx.Attachment,
		&date, &tx.CreatedBy, &tx.CreatedByName, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	fillTransaction(&tx, kind, paymentType, date, createdAt, updatedAt)
	return tx, nil
}

func fillTransaction(tx *core.Transaction, kind, paymentType, date, createdAt, updatedAt string) {
	tx.Kind = core.Kind(kind)
	tx.PaymentType = core.PaymentType(paymentType)
	tx.Date = parseTime(date)
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseTime(updatedAt)
}
