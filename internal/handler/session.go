package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/service"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/session"
)

// Accounts is what SessionHandler needs; *service.AccountService implements it.
type Accounts interface {
	Session() session.State
	Login(ctx context.Context, email, password string) (model.User, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, req model.Registration) (model.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangeRole(ctx context.Context, userID, role string) error
	DeleteUser(ctx context.Context, userID string) error
}

var _ Accounts = (*service.AccountService)(nil)

// SessionHandler serves the session, sign-up, password reset and user
// administration endpoints.
type SessionHandler struct {
	accounts Accounts
	logger   *slog.Logger
}

func NewSessionHandler(accounts Accounts, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{accounts: accounts, logger: logger}
}

// HandleGet returns the session snapshot. The token itself never leaves the
// process.
//
// HTTP: GET /api/session
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.accounts.Session())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin starts a session.
//
// HTTP: POST /api/session
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.accounts.Login(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.accounts.Session())
}

// HandleLogout ends the session. Logging out twice is not an error.
//
// HTTP: DELETE /api/session
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context()); err != nil {
		// Memory is already cleared; only the persisted copy may linger.
		h.logger.Error("logout: clearing persisted session failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, h.accounts.Session())
}

// HandleRegister creates an account.
//
// HTTP: POST /api/register
func (h *SessionHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleForgotPassword asks the backend to mail a reset link.
//
// HTTP: POST /api/password/forgot
func (h *SessionHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Revisa tu correo para continuar"})
}

// HandleResetPassword sets a new password.
//
// HTTP: POST /api/password/reset
func (h *SessionHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Contraseña actualizada"})
}

// HandleChangeRole sets a user's role.
//
// HTTP: PUT /api/users/{id}/role
func (h *SessionHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.accounts.ChangeRole(r.Context(), chi.URLParam(r, "id"), req.Role); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteUser removes an account. Deleting your own ends the session,
// which the returned snapshot reflects.
//
// HTTP: DELETE /api/users/{id}
func (h *SessionHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.accounts.Session())
}
