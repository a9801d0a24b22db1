package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tallybook/internal/auth"
	"tallybook/internal/core"
	"tallybook/internal/storage"
)

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleCreateTransaction(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.FromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Authorization required")
			return
		}

		form, errs := parseTransactionForm(r, s.maxUploadBytes)
		if errs != nil {
			writeValidationErrors(w, errs)
			return
		}
		defer form.Close()

		attachment := ""
		if form.File != nil {
			name, err := s.files.Save(form.File, form.FileHeader)
			if err != nil {
				writeStorageError(w, r, err)
				return
			}
			attachment = name
		}

		// The creator comes from the token, never from the body.
		tx, err := s.store.CreateTransaction(r.Context(), core.Transaction{
			Kind:        kind,
			Amount:      form.Amount,
			PaymentType: form.PaymentType,
			Note:        form.Note,
			Attachment:  attachment,
			Date:        form.Date,
			CreatedBy:   identity.UserID,
		})
		if err != nil {
			writeStorageError(w, r, err)
			return
		}

		s.invalidateSummaries(tx.Date)
		s.publishExport(r, tx)

		slog.InfoContext(r.Context(), "Transaction recorded",
			"tx_id", tx.ID,
			"kind", tx.Kind,
			"amount_cents", tx.Amount.Cents,
			"user_id", identity.UserID)
		writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
	}
}

func (s *Server) handleListTransactions(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, errMsg := parseListFilter(r)
		if errMsg != "" {
			writeMessage(w, http.StatusBadRequest, errMsg)
			return
		}

		txs, err := s.store.ListTransactions(r.Context(), kind, filter)
		if err != nil {
			writeStorageError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactionResponses(txs))
	}
}

// parseListFilter reads the date filters. An exact date wins over a
// range; a range needs both bounds.
func parseListFilter(r *http.Request) (storage.ListFilter, string) {
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return storage.ListFilter{}, "Invalid date"
		}
		day = day.UTC()
		return storage.ListFilter{Day: &day}, ""
	}

	startRaw := strings.TrimSpace(q.Get("startDate"))
	endRaw := strings.TrimSpace(q.Get("endDate"))
	if startRaw == "" && endRaw == "" {
		return storage.ListFilter{}, ""
	}
	if startRaw == "" || endRaw == "" {
		return storage.ListFilter{}, "Both startDate and endDate are required"
	}

	start, err := time.Parse(dateLayout, startRaw)
	if err != nil {
		return storage.ListFilter{}, "Invalid startDate"
	}
	end, err := time.Parse(dateLayout, endRaw)
	if err != nil {
		return storage.ListFilter{}, "Invalid endDate"
	}
	if end.Before(start) {
		return storage.ListFilter{}, "endDate must not be before startDate"
	}
	start, end = start.UTC(), end.UTC()
	return storage.ListFilter{Start: &start, End: &end}, ""
}

func (s *Server) handleGetTransaction(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid id")
			return
		}

		tx, err := s.store.GetTransaction(r.Context(), kind, id)
		if err != nil {
			writeStorageError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactionResponse(tx))
	}
}

func (s *Server) handleUpdateTransaction(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid id")
			return
		}

		existing, err := s.store.GetTransaction(r.Context(), kind, id)
		if err != nil {
			writeStorageError(w, r, err)
			return
		}

		form, errs := parseTransactionForm(r, s.maxUploadBytes)
		if errs != nil {
			writeValidationErrors(w, errs)
			return
		}
		defer form.Close()

		replaceAttachment := false
		attachment := existing.Attachment
		if form.File != nil {
			name, err := s.files.Save(form.File, form.FileHeader)
			if err != nil {
				writeStorageError(w, r, err)
				return
			}
			replaceAttachment = true
			attachment = name
			if existing.Attachment != "" && existing.Attachment != name {
				// The replaced file stays on disk until a cleanup pass
				// reclaims it.
				slog.WarnContext(r.Context(), "Attachment replaced, previous file orphaned",
					"tx_id", existing.ID,
					"orphaned_file", existing.Attachment,
					"new_file", name)
			}
		}

		updated, err := s.store.UpdateTransaction(r.Context(), core.Transaction{
			ID:          existing.ID,
			Kind:        kind,
			Amount:      form.Amount,
			PaymentType: form.PaymentType,
			Note:        form.Note,
			Attachment:  attachment,
			Date:        form.Date,
		}, replaceAttachment)
		if err != nil {
			writeStorageError(w, r, err)
			return
		}

		s.invalidateSummaries(existing.Date)
		s.invalidateSummaries(updated.Date)
		s.publishExport(r, updated)

		slog.InfoContext(r.Context(), "Transaction updated",
			"tx_id", updated.ID,
			"kind", updated.Kind)
		writeJSON(w, http.StatusOK, toTransactionResponse(updated))
	}
}

func (s *Server) handleDeleteTransaction(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid id")
			return
		}

		deleted, err := s.store.DeleteTransaction(r.Context(), kind, id)
		if err != nil {
			writeStorageError(w, r, err)
			return
		}

		if deleted.Attachment != "" {
			if err := s.files.Remove(deleted.Attachment); err != nil {
				slog.WarnContext(r.Context(), "Failed to remove attachment",
					"tx_id", deleted.ID,
					"file", deleted.Attachment,
					"error", err)
			}
		}

		s.invalidateSummaries(deleted.Date)

		slog.InfoContext(r.Context(), "Transaction deleted",
			"tx_id", deleted.ID,
			"kind", deleted.Kind)
		writeMessage(w, http.StatusOK, "Record deleted")
	}
}

// publishExport queues the record for the ledger worker. Failures are
// logged only; the worker's pending scan recovers missed records.
func (s *Server) publishExport(r *http.Request, tx core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExport(r.Context(), tx.ID, tx.Kind); err != nil {
		slog.WarnContext(r.Context(), "Failed to publish export message",
			"tx_id", tx.ID,
			"error", err)
	}
}
