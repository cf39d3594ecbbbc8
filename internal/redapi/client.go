// Package redapi is the typed client for the Red Networking backend.
//
// Every call goes through apiclient, so every call gets the same headers,
// envelope normalization, and error taxonomy. The client also keeps the
// session store in step with what the backend says about the current user:
// a successful login starts a session, and deleting your own account ends it.
package redapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apiclient"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/auth"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/repository"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/session"
)

const (
	MinPasswordLength = 6
	DefaultPageSize   = 9
)

// Client calls the backend on behalf of the current session.
type Client struct {
	api     *apiclient.Client
	session *session.Store
	logger  *slog.Logger
}

var (
	_ repository.ProjectRepository = (*Client)(nil)
	_ repository.AccountRepository = (*Client)(nil)
)

func New(api *apiclient.Client, store *session.Store, logger *slog.Logger) *Client {
	return &Client{api: api, session: store, logger: logger}
}

// =========================================================================
// AUTH
// =========================================================================

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login exchanges credentials for a token and starts a session with it.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return model.User{}, err
	}
	if password == "" {
		return model.User{}, apperror.ValidationFailed("password", "la contraseña es obligatoria")
	}

	resp, err := c.api.Send(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   credentials{Email: email, Password: password},
	})
	if err != nil {
		return model.User{}, fmt.Errorf("redapi: login: %w", err)
	}
	res, err := apiclient.Decode[loginResult](resp)
	if err != nil {
		return model.User{}, fmt.Errorf("redapi: login: %w", err)
	}
	if res.Data.Token == "" {
		return model.User{}, apperror.ServerError(resp.Status, "la respuesta de inicio de sesión no incluye token")
	}

	var user model.User
	if res.Data.User != nil {
		user = *res.Data.User
	}
	if user.ID == "" {
		if claims, err := auth.Inspect(res.Data.Token); err == nil {
			user.ID = claims.Subject
		}
	}
	if user.Email == "" {
		user.Email = email
	}

	if err := c.session.Login(ctx, res.Data.Token, user); err != nil {
		return model.User{}, fmt.Errorf("redapi: login: %w", err)
	}
	return user, nil
}

// Logout ends the local session. The backend keeps no server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

func validateRegistration(r model.Registration) error {
	if r.Name == "" {
		return apperror.ValidationFailed("name", "el nombre es obligatorio")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Password) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("la contraseña debe tener al menos %d caracteres", MinPasswordLength))
	}
	if r.Role != "" && !validRole(r.Role) {
		return apperror.ValidationFailed("role", fmt.Sprintf("rol desconocido: %s", r.Role))
	}
	return nil
}

// Register creates an account. It does not log the new user in.
func (c *Client) Register(ctx context.Context, req model.Registration) (model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRegistration(req); err != nil {
		return model.User{}, err
	}

	res, err := apiclient.Do[json.RawMessage](ctx, c.api, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   req,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("redapi: register: %w", err)
	}

	user := decodeUser(res.Data)
	if user.Email == "" {
		user.Email = req.Email
	}
	if user.Name == "" {
		user.Name = req.Name
	}
	c.logger.Info("account registered", slog.String("email", req.Email))
	return user, nil
}

// decodeUser reads either { user: {...} } or the user object itself.
func decodeUser(raw json.RawMessage) model.User {
	var wrapped struct {
		User *model.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User
	}
	var user model.User
	_ = json.Unmarshal(raw, &user)
	return user
}

// RequestPasswordReset asks the backend to mail a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	_, err := apiclient.Do[json.RawMessage](ctx, c.api, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/forgot-password",
		Body:   map[string]string{"email": email},
	})
	if err != nil {
		return fmt.Errorf("redapi: requesting password reset: %w", err)
	}
	return nil
}

// ResetPassword sets a new password using the token from the reset mail.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return apperror.ValidationFailed("token", "el enlace de recuperación no es válido")
	}
	if len(newPassword) < MinPasswordLength {
		return apperror.ValidationFailed("newPassword",
			fmt.Sprintf("la contraseña debe tener al menos %d caracteres", MinPasswordLength))
	}
	_, err := apiclient.Do[json.RawMessage](ctx, c.api, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/reset-password",
		Body:   map[string]string{"token": token, "newPassword": newPassword},
	})
	if err != nil {
		return fmt.Errorf("redapi: resetting password: %w", err)
	}
	return nil
}

// =========================================================================
// PROJECTS
// =========================================================================

// ListProjects returns one page of projects. limit <= 0 uses DefaultPageSize.
func (c *Client) ListProjects(ctx context.Context, page, limit int) (model.Page[model.Project], error) {
	return c.listPage(ctx, "/projects", page, limit)
}

// Ranking returns one page of projects ordered best-first by the backend.
func (c *Client) Ranking(ctx context.Context, page, limit int) (model.Page[model.Project], error) {
	return c.listPage(ctx, "/ranking", page, limit)
}

func (c *Client) listPage(ctx context.Context, path string, page, limit int) (model.Page[model.Project], error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	res, err := apiclient.Do[model.Page[model.Project]](ctx, c.api, apiclient.Request{
		Method: http.MethodGet,
		Path:   path,
		Query: url.Values{
			"page":  {strconv.Itoa(page)},
			"limit": {strconv.Itoa(limit)},
		},
	})
	if err != nil {
		return model.Page[model.Project]{}, fmt.Errorf("redapi: listing %s page %d: %w", path, page, err)
	}
	if res.Data.CurrentPage == 0 && len(res.Data.Items) > 0 {
		res.Data.CurrentPage = page
	}
	return res.Data, nil
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, id string) (model.Project, error) {
	if err := requireID("id", id); err != nil {
		return model.Project{}, err
	}
	res, err := apiclient.Do[model.Project](ctx, c.api, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/projects/" + url.PathEscape(id),
		Route:  "/projects/{id}",
	})
	if err != nil {
		return model.Project{}, fmt.Errorf("redapi: getting project %s: %w", id, err)
	}
	return res.Data, nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}
	_, err := apiclient.Do[json.RawMessage](ctx, c.api, apiclient.Request{
		Method: http.MethodDelete,
		Path:   "/projects/" + url.PathEscape(id),
		Route:  "/projects/{id}",
	})
	if err != nil {
		return fmt.Errorf("redapi: deleting project %s: %w", id, err)
	}
	c.logger.Info("project deleted", slog.String("projectID", id))
	return nil
}

// ScoreSubmission is the body of a score submission. Score is the already
// aggregated value; individual criteria are not part of the contract.
type ScoreSubmission struct {
	Score    float64 `json:"puntuacion"`
	Feedback string  `json:"comentario,omitempty"`
	UserID   string  `json:"userId,omitempty"`
}

// AddScore stores one score for a project.
func (c *Client) AddScore(ctx context.Context, projectID string, sub ScoreSubmission) error {
	if err := requireID("projectId", projectID); err != nil {
		return err
	}
	if sub.Score < rating.MinScore || sub.Score > rating.MaxScore {
		return apperror.ValidationFailed("puntuacion",
			fmt.Sprintf("la puntuación debe estar entre %d y %d", rating.MinScore, rating.MaxScore))
	}
	_, err := apiclient.Do[json.RawMessage](ctx, c.api, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/projects/" + url.PathEscape(projectID) + "/agregar-puntuacion",
		Route:  "/projects/{id}/agregar-puntuacion",
		Body:   sub,
	})
	if err != nil {
		return fmt.Errorf("redapi: adding score to %s: %w", projectID, err)
	}
	return nil
}

// SubmitScore sends score as the logged-in user.
func (c *Client) SubmitScore(ctx context.Context, projectID string, score float64, feedback string) error {
	sub := ScoreSubmission{Score: score, Feedback: feedback}
	if u, ok := c.session.User(); ok {
		sub.UserID = u.ID
	}
	return c.AddScore(ctx, projectID, sub)
}

// ListEvaluations returns every evaluation of a project.
func (c *Client) ListEvaluations(ctx context.Context, projectID string) ([]model.Evaluation, error) {
	if err := requireID("projectId", projectID); err != nil {
		return nil, err
	}
	res, err := apiclient.Do[[]model.Evaluation](ctx, c.api, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/projects/evaluaciones/" + url.PathEscape(projectID),
		Route:  "/projects/evaluaciones/{id}",
	})
	if err != nil {
		return nil, fmt.Errorf("redapi: listing evaluations of %s: %w", projectID, err)
	}
	for i := range res.Data {
		if res.Data[i].ProjectID == "" {
			res.Data[i].ProjectID = projectID
		}
	}
	return res.Data, nil
}

// =========================================================================
// USERS
// =========================================================================

// ChangeRole sets a user's role. Changing your own role also updates the
// cached profile so the session reflects it.
func (c *Client) ChangeRole(ctx context.Context, userID, role string) error {
	if err := requireID("userId", userID); err != nil {
		return err
	}
	if !validRole(role) {
		return apperror.ValidationFailed("role", fmt.Sprintf("rol desconocido: %s", role))
	}
	_, err := apiclient.Do[json.RawMessage](ctx, c.api, apiclient.Request{
		Method: http.MethodPut,
		Path:   "/users/" + url.PathEscape(userID) + "/cambiar-rol",
		Route:  "/users/{id}/cambiar-rol",
		Body:   map[string]string{"role": role},
	})
	if err != nil {
		return fmt.Errorf("redapi: changing role of %s: %w", userID, err)
	}

	st := c.session.State()
	if st.IsAuthenticated && st.User.ID == userID {
		u := *st.User
		u.Role = role
		if err := c.session.Login(ctx, st.Token, u); err != nil {
			return fmt.Errorf("redapi: updating cached role: %w", err)
		}
	}
	return nil
}

// DeleteUser removes an account. Deleting the logged-in account ends the
// session.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if err := requireID("userId", userID); err != nil {
		return err
	}
	_, err := apiclient.Do[json.RawMessage](ctx, c.api, apiclient.Request{
		Method: http.MethodDelete,
		Path:   "/users/" + url.PathEscape(userID),
		Route:  "/users/{id}",
	})
	if err != nil {
		return fmt.Errorf("redapi: deleting user %s: %w", userID, err)
	}

	if u, ok := c.session.User(); ok && u.ID == userID {
		c.logger.Info("own account deleted, ending session", slog.String("userID", userID))
		if err := c.session.Logout(ctx); err != nil {
			return fmt.Errorf("redapi: ending session: %w", err)
		}
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "el correo es obligatorio")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperror.ValidationFailed("email", "el correo no es válido")
	}
	return nil
}

func validRole(role string) bool {
	switch role {
	case model.RoleStudent, model.RoleProfessor, model.RoleAdmin:
		return true
	}
	return false
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ValidationFailed(field, "el identificador es obligatorio")
	}
	return nil
}
