package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tallybook/internal/amqp"
	"tallybook/internal/core"
	"tallybook/internal/export"
	"tallybook/internal/storage"
)

// ExportWorker appends recorded transactions to the external ledger.
// It is driven by AMQP messages, with a periodic pending scan as a
// backup for lost messages.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	ledger    export.LedgerWriter
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, ledger export.LedgerWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes a single export message from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExportMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"id", msg.ID,
		"kind", msg.Kind)

	tx, err := w.storage.GetTransactionByID(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted before the export ran; nothing to append.
			slog.WarnContext(ctx, "Transaction gone before export", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	return w.exportTransaction(ctx, tx.ID, tx)
}

func (w *ExportWorker) exportTransaction(ctx context.Context, id int64, tx core.Transaction) error {
	ref, err := w.ledger.Append(ctx, tx)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}

	slog.InfoContext(ctx, "Exported transaction to ledger",
		"id", id,
		"kind", tx.Kind,
		"row_ref", ref)
	return nil
}

// ProcessPending exports any transactions still waiting. This is the
// backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.GetPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, tx := range pending {
		if err := w.exportTransaction(ctx, tx.ID, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "id", tx.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck drains a larger pending batch once at worker startup to
// recover from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, tx := range pending {
		if err := w.exportTransaction(ctx, tx.ID, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export during startup",
				"id", tx.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}
