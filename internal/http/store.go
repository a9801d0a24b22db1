package http

import (
	"context"
	"time"

	"tallybook/internal/core"
	"tallybook/internal/storage"
)

// Store is what the handlers need from persistence. Satisfied by
// storage.SQLiteRepository; tests use an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, user core.User) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)

	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, kind core.Kind, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, kind core.Kind, filter storage.ListFilter) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction, replaceAttachment bool) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, kind core.Kind, id int64) (core.Transaction, error)

	DaySummary(ctx context.Context, day time.Time) (core.DaySummary, error)
	MonthSummary(ctx context.Context, year, month int) (core.MonthSummary, error)
}

// Publisher notifies the export pipeline about recorded transactions.
// Optional; when nil the worker's pending scan picks everything up.
type Publisher interface {
	PublishExport(ctx context.Context, id int64, kind core.Kind) error
}
