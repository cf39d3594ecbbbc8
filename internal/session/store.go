// Package session is the client's single answer to "who is logged in".
//
// THE STORE IS INJECTED, NOT GLOBAL:
// A *Store is created once in main and passed to whatever needs it (the API
// client's bearer interceptor, the handlers, the CLI). Tests build their own
// store over storage.NewMemory(), so no test ever sees another test's login.
//
// SNAPSHOT WRITES:
// Login and Logout replace the whole State value under the lock. Readers
// therefore observe either the old session or the new one, never a token
// without its user or a user without its token.
//
// PERSISTENCE LAYOUT (three string keys, same as a browser's localStorage):
//
//	token    → the bearer token issued by the backend
//	userId   → the user's ID on its own, so a damaged profile can be rebuilt
//	userData → the JSON-encoded model.User
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/auth"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/storage"
)

// Storage keys.
const (
	KeyToken    = "token"
	KeyUserID   = "userId"
	KeyUserData = "userData"
)

// ErrNoSession is returned by Token when nobody is logged in.
var ErrNoSession = errors.New("session: not logged in")

// State is the observable session snapshot.
//
// IsAuthenticated is true iff both Token and User are set. IsLoading is true
// only until the first Restore finishes.
type State struct {
	User            *model.User `json:"user"`
	Token           string      `json:"-"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	IsLoading       bool        `json:"isLoading"`
}

// Store holds the current session and mirrors it into durable storage.
type Store struct {
	storage storage.Storage
	logger  *slog.Logger
	now     func() time.Time

	restoreOnce sync.Once

	mu        sync.RWMutex
	token     string
	user      *model.User
	loading   bool
	listeners map[int]func(State)
	nextID    int
}

// compile-time check: the store feeds the API client's bearer interceptor.
var _ oauth2.TokenSource = (*Store)(nil)

// New creates a store in the loading state. Call Restore once at startup.
func New(st storage.Storage, logger *slog.Logger) *Store {
	return &Store{
		storage:   st,
		logger:    logger,
		now:       time.Now,
		loading:   true,
		listeners: make(map[int]func(State)),
	}
}

// State returns a copy of the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := State{IsLoading: s.loading}
	if s.token != "" && s.user != nil {
		u := *s.user
		st.User = &u
		st.Token = s.token
		st.IsAuthenticated = true
	}
	return st
}

// IsAuthenticated is shorthand for State().IsAuthenticated.
func (s *Store) IsAuthenticated() bool {
	return s.State().IsAuthenticated
}

// User returns the logged-in user, if any.
func (s *Store) User() (model.User, bool) {
	st := s.State()
	if !st.IsAuthenticated {
		return model.User{}, false
	}
	return *st.User, true
}

// Token implements oauth2.TokenSource so the API client can attach the
// bearer header with oauth2.Token.SetAuthHeader.
func (s *Store) Token() (*oauth2.Token, error) {
	st := s.State()
	if !st.IsAuthenticated {
		return nil, ErrNoSession
	}
	tok := &oauth2.Token{AccessToken: st.Token, TokenType: "Bearer"}
	if claims, err := auth.Inspect(st.Token); err == nil && claims.HasExpiry() {
		tok.Expiry = claims.ExpiresAt
	}
	return tok, nil
}

// Subscribe registers fn to receive every new snapshot. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// commit swaps in a new session and notifies listeners outside the lock.
func (s *Store) commit(token string, user *model.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.loading = false
	st := s.snapshotLocked()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// Login persists token and user together, then publishes the new session.
// If persisting fails the in-memory session is left untouched.
func (s *Store) Login(ctx context.Context, token string, user model.User) error {
	if token == "" {
		return apperror.ValidationFailed("token", "el token de sesión es obligatorio")
	}
	if user.ID == "" {
		return apperror.ValidationFailed("user", "el usuario de la sesión es obligatorio")
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encoding user %s: %w", user.ID, err)
	}

	if err := s.storage.SetMany(ctx, map[string]string{
		KeyToken:    token,
		KeyUserID:   user.ID,
		KeyUserData: string(data),
	}); err != nil {
		return fmt.Errorf("session: persisting login for %s: %w", user.ID, err)
	}

	s.commit(token, &user)
	s.logger.Info("session started",
		slog.String("userID", user.ID),
		slog.String("role", user.Role),
	)
	return nil
}

// Logout clears the in-memory session first, so IsAuthenticated is false as
// soon as Logout is called, and then removes the persisted keys.
func (s *Store) Logout(ctx context.Context) error {
	s.commit("", nil)

	if err := s.storage.Delete(ctx, KeyToken, KeyUserID, KeyUserData); err != nil {
		return fmt.Errorf("session: clearing persisted session: %w", err)
	}
	s.logger.Info("session cleared")
	return nil
}

// Restore loads the persisted session. It runs once; later calls return the
// current snapshot. It never fails: a damaged cache degrades to a minimal
// identity or to a logged-out state.
func (s *Store) Restore(ctx context.Context) State {
	s.restoreOnce.Do(func() {
		token, user := s.readPersisted(ctx)
		s.commit(token, user)
		if user != nil && token != "" {
			s.logger.Debug("session restored", slog.String("userID", user.ID))
		}
	})
	return s.State()
}

func (s *Store) readPersisted(ctx context.Context) (string, *model.User) {
	token := s.get(ctx, KeyToken)
	if token == "" {
		return "", nil
	}

	claims, claimsErr := auth.Inspect(token)
	if claimsErr == nil && claims.Expired(s.now()) {
		s.logger.Info("persisted session expired, discarding",
			slog.Time("expiredAt", claims.ExpiresAt),
		)
		s.discard(ctx)
		return "", nil
	}

	userID := s.get(ctx, KeyUserID)
	var user model.User
	if raw := s.get(ctx, KeyUserData); raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			s.logger.Warn("cached user profile unreadable, rebuilding minimal identity",
				slog.String("error", err.Error()),
			)
			user = model.User{}
		}
	}

	switch {
	case user.ID != "":
	case userID != "":
		user.ID = userID
	case claimsErr == nil && claims.Subject != "":
		user.ID = claims.Subject
	default:
		// A token nobody can be attached to is not a session.
		s.logger.Warn("persisted token has no user, discarding")
		s.discard(ctx)
		return "", nil
	}

	return token, &user
}

// get reads one key, treating storage errors as a missing value.
func (s *Store) get(ctx context.Context, key string) string {
	v, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Warn("reading persisted session key failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Store) discard(ctx context.Context) {
	if err := s.storage.Delete(ctx, KeyToken, KeyUserID, KeyUserData); err != nil {
		s.logger.Warn("clearing stale session failed", slog.String("error", err.Error()))
	}
}
