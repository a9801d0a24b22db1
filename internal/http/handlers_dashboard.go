package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (s *Server) handleDaySummary(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		writeMessage(w, http.StatusBadRequest, "Date is required")
		return
	}
	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid date")
		return
	}
	day = day.UTC()

	cacheKey := day.Format(dateLayout)
	if cached, ok := s.dayCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, toDaySummaryResponse(cached))
		return
	}

	summary, err := s.store.DaySummary(r.Context(), day)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	s.dayCache.Set(cacheKey, summary)
	writeJSON(w, http.StatusOK, toDaySummaryResponse(summary))
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year, err := strconv.Atoi(strings.TrimSpace(q.Get("year")))
	if err != nil || year < 1970 || year > 9999 {
		writeMessage(w, http.StatusBadRequest, "Invalid year")
		return
	}
	month, err := strconv.Atoi(strings.TrimSpace(q.Get("month")))
	if err != nil || month < 1 || month > 12 {
		writeMessage(w, http.StatusBadRequest, "Invalid month")
		return
	}

	cacheKey := fmt.Sprintf("%04d-%02d", year, month)
	if cached, ok := s.monthCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, toMonthSummaryResponse(cached))
		return
	}

	summary, err := s.store.MonthSummary(r.Context(), year, month)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	s.monthCache.Set(cacheKey, summary)
	writeJSON(w, http.StatusOK, toMonthSummaryResponse(summary))
}
