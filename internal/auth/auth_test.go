package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tallybook/internal/core"
)

func testUser() core.User {
	return core.User{ID: 7, Username: "alice", Role: core.RoleAdmin, PasswordHash: "x"}
}

func TestIssueAndParse(t *testing.T) {
	m := NewTokenManager("0123456789abcdef", time.Hour)

	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "alice" || claims.Role != core.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("0123456789abcdef", time.Hour).Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenManager("another-secret-value", time.Hour).Parse(token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewTokenManager("0123456789abcdef", -time.Minute)
	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestPasswordHashRoundtrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatal("expected password to match")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("expected mismatch for wrong password")
	}
}

func TestMiddleware(t *testing.T) {
	m := NewTokenManager("0123456789abcdef", time.Hour)
	token, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var gotIdentity Identity
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if gotIdentity.UserID != 7 || !gotIdentity.IsAdmin() {
		t.Fatalf("unexpected identity: %+v", gotIdentity)
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: 2, Role: core.RoleUser}))
	rec := httptest.NewRecorder()
	RequireAdmin(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: 1, Role: core.RoleAdmin}))
	rec = httptest.NewRecorder()
	RequireAdmin(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", rec.Code)
	}
}
