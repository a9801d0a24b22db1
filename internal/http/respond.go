package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tallybook/internal/attachments"
	"tallybook/internal/storage"
)

type messageResponse struct {
	Message string `json:"message"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationResponse struct {
	Message string       `json:"message"`
	Errors  []fieldError `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeValidationErrors(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusBadRequest, validationResponse{
		Message: "Validation failed",
		Errors:  errs,
	})
}

// writeStorageError maps store failures onto the response taxonomy.
// Internal details are logged, never sent to the client.
func writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, attachments.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, storage.ErrUsernameTaken):
		writeMessage(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, attachments.ErrTooLarge):
		writeMessage(w, http.StatusBadRequest, "Attachment too large")
	case errors.Is(err, attachments.ErrBadFilename):
		writeMessage(w, http.StatusBadRequest, "Invalid attachment name")
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
