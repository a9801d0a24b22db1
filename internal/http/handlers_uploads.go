package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	f, err := s.files.Open(name)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := io.Copy(w, f); err != nil {
		slog.WarnContext(r.Context(), "Attachment download interrupted",
			"file", name,
			"error", err)
	}
}
