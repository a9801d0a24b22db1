package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	first := GenerateRequestID()
	second := GenerateRequestID()

	if !strings.HasPrefix(first, "req_") {
		t.Errorf("request id %q should have req_ prefix", first)
	}
	if first == second {
		t.Error("consecutive request ids should differ")
	}
}

func TestMiddlewareInjectsRequestID(t *testing.T) {
	m := NewMiddleware(nil)

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sales", nil))

	if seen == "" {
		t.Fatal("handler should see a request id in context")
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("total requests = %d, want 1", m.GetMetrics().TotalRequests)
	}
}

func TestMiddlewareCapturesStatusCode(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "1.2.3.4" })

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
