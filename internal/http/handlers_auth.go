package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tallybook/internal/auth"
	"tallybook/internal/core"
	"tallybook/internal/storage"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	Role   string `json:"role"`
	UserID int64  `json:"userId"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []fieldError
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		errs = append(errs, fieldError{Field: "username", Message: "Username is required"})
	}
	if req.Password == "" {
		errs = append(errs, fieldError{Field: "password", Message: "Password is required"})
	}

	role := core.RoleUser
	if req.Role != "" {
		role = core.Role(req.Role)
		if err := role.Validate(); err != nil {
			errs = append(errs, fieldError{Field: "role", Message: "Invalid role"})
		}
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	user, err := s.store.CreateUser(r.Context(), core.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "User registered",
		"user_id", user.ID,
		"role", user.Role)
	writeMessage(w, http.StatusCreated, "User registered")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeStorageError(w, r, err)
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "User logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:  token,
		Role:   string(user.Role),
		UserID: user.ID,
	})
}
