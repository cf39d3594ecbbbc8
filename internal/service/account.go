package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/repository"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/session"
)

// AccountService handles login, sign-up and user administration.
//
// Who may do what is checked here before any request leaves, so the UI
// gets an immediate answer. The backend remains the authority.
type AccountService struct {
	accounts repository.AccountRepository
	session  *session.Store
	logger   *slog.Logger
}

func NewAccountService(accounts repository.AccountRepository, store *session.Store, logger *slog.Logger) *AccountService {
	return &AccountService{accounts: accounts, session: store, logger: logger}
}

// Session returns the current session snapshot.
func (s *AccountService) Session() session.State {
	return s.session.State()
}

func (s *AccountService) Login(ctx context.Context, email, password string) (model.User, error) {
	user, err := s.accounts.Login(ctx, email, password)
	if err != nil {
		s.logger.Info("login failed", slog.String("error", err.Error()))
		return model.User{}, err
	}
	return user, nil
}

func (s *AccountService) Logout(ctx context.Context) error {
	return s.accounts.Logout(ctx)
}

func (s *AccountService) Register(ctx context.Context, req model.Registration) (model.User, error) {
	return s.accounts.Register(ctx, req)
}

func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.accounts.RequestPasswordReset(ctx, email)
}

func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.accounts.ResetPassword(ctx, token, newPassword)
}

// ChangeRole is reserved to admins.
func (s *AccountService) ChangeRole(ctx context.Context, userID, role string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := s.accounts.ChangeRole(ctx, userID, role); err != nil {
		return fmt.Errorf("changing role of %s: %w", userID, err)
	}
	s.logger.Info("role changed", slog.String("userID", userID), slog.String("role", role))
	return nil
}

// DeleteUser removes an account. Users may delete their own; admins may
// delete anyone's.
func (s *AccountService) DeleteUser(ctx context.Context, userID string) error {
	me, ok := s.session.User()
	if !ok {
		return apperror.Unauthorized(0, "")
	}
	if me.ID != userID && me.Role != model.RoleAdmin {
		return apperror.Forbidden("Solo puedes eliminar tu propia cuenta")
	}
	if err := s.accounts.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("deleting user %s: %w", userID, err)
	}
	return nil
}

func (s *AccountService) requireAdmin() error {
	me, ok := s.session.User()
	if !ok {
		return apperror.Unauthorized(0, "")
	}
	if me.Role != model.RoleAdmin {
		return apperror.Forbidden("Solo un administrador puede cambiar roles")
	}
	return nil
}
