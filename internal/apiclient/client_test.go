package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
)

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// captured is what the fake backend saw.
type captured struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

// newBackend starts an httptest server answering with status and body,
// recording the last request it received.
func newBackend(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	seen := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*seen = captured{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			header: r.Header.Clone(),
			body:   string(b),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := New(baseURL, testLogger(), opts...)
	require.NoError(t, err)
	return c
}

// fakeRecorder captures metrics calls.
type fakeRecorder struct {
	calls []string
}

func (f *fakeRecorder) ObserveRequest(method, route string, status int, outcome string, _ time.Duration) {
	f.calls = append(f.calls, method+" "+route+" "+outcome)
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api", testLogger())
	assert.Error(t, err)
}

// =========================================================================
// REQUEST SHAPING
// =========================================================================

func TestSend_DefaultsContentTypeAndJoinsPath(t *testing.T) {
	srv, seen := newBackend(t, 200, `{"proceso":true}`)
	c := newTestClient(t, srv.URL+"/api/")

	_, err := c.Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/projects/p1/agregar-puntuacion",
		Body:   map[string]any{"puntuacion": 3.8},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, seen.method)
	assert.Equal(t, "/api/projects/p1/agregar-puntuacion", seen.path)
	assert.Equal(t, "application/json", seen.header.Get("Content-Type"))
	assert.NotEmpty(t, seen.header.Get(HeaderRequestID))
	assert.JSONEq(t, `{"puntuacion":3.8}`, seen.body)
}

func TestSend_ReusesInboundRequestID(t *testing.T) {
	srv, seen := newBackend(t, 200, `{}`)
	c := newTestClient(t, srv.URL)

	ctx := context.WithValue(context.Background(), chimiddleware.RequestIDKey, "front/abc-000042")
	_, err := c.Send(ctx, Request{Path: "/projects"})
	require.NoError(t, err)

	assert.Equal(t, "front/abc-000042", seen.header.Get(HeaderRequestID))
}

func TestSend_KeepsExplicitContentType(t *testing.T) {
	srv, seen := newBackend(t, 200, `{}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/upload",
		Body:   []byte("raw"),
		Header: http.Header{"Content-Type": {"text/plain"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "text/plain", seen.header.Get("Content-Type"))
	assert.Equal(t, "raw", seen.body)
}

func TestSend_QueryString(t *testing.T) {
	srv, seen := newBackend(t, 200, `[]`)
	c := newTestClient(t, srv.URL)

	_, err := c.Send(context.Background(), Request{
		Path:  "/ranking",
		Query: map[string][]string{"page": {"2"}, "limit": {"9"}},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, seen.method)
	assert.Equal(t, "limit=9&page=2", seen.query)
}

func TestSend_BearerToken(t *testing.T) {
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123"})

	t.Run("attached when a token exists", func(t *testing.T) {
		srv, seen := newBackend(t, 200, `{}`)
		c := newTestClient(t, srv.URL, WithTokenSource(tokens))

		_, err := c.Send(context.Background(), Request{Path: "/ranking"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok-123", seen.header.Get("Authorization"))
	})

	t.Run("explicit Authorization header wins", func(t *testing.T) {
		srv, seen := newBackend(t, 200, `{}`)
		c := newTestClient(t, srv.URL, WithTokenSource(tokens))

		_, err := c.Send(context.Background(), Request{
			Path:   "/auth/reset-password",
			Header: http.Header{"Authorization": {"Bearer reset-token"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "Bearer reset-token", seen.header.Get("Authorization"))
	})

	t.Run("no token, no header", func(t *testing.T) {
		srv, seen := newBackend(t, 200, `{}`)
		noSession := oauth2.TokenSource(tokenSourceFunc(func() (*oauth2.Token, error) {
			return nil, errors.New("not logged in")
		}))
		c := newTestClient(t, srv.URL, WithTokenSource(noSession))

		_, err := c.Send(context.Background(), Request{Path: "/ranking"})
		require.NoError(t, err)
		assert.Empty(t, seen.header.Get("Authorization"))
	})
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

func TestSend_InterceptorError(t *testing.T) {
	srv, _ := newBackend(t, 200, `{}`)
	boom := errors.New("boom")
	c := newTestClient(t, srv.URL, WithInterceptors(func(*http.Request) error { return boom }))

	_, err := c.Send(context.Background(), Request{Path: "/"})
	assert.ErrorIs(t, err, boom)
}

// =========================================================================
// RESPONSES AND ERROR TAXONOMY
// =========================================================================

func TestSend_SuccessReturnsBodyUnchanged(t *testing.T) {
	body := `{"proceso":true,"data":{"id":"p1"},"extra":[1,2]}`
	srv, _ := newBackend(t, 201, body)
	c := newTestClient(t, srv.URL)

	resp, err := c.Send(context.Background(), Request{Path: "/projects"})
	require.NoError(t, err)

	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, body, string(resp.Body))
}

func TestSend_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantMessage string
		wantServer  string
	}{
		{"400 with proceso message", 400, `{"proceso":false,"message":"Título requerido"}`, apperror.ErrBadRequest, "Título requerido", "Título requerido"},
		{"400 with ok error", 400, `{"ok":false,"error":"Correo inválido"}`, apperror.ErrBadRequest, "Correo inválido", "Correo inválido"},
		{"400 without body", 400, ``, apperror.ErrBadRequest, apperror.MsgBadRequest, ""},
		{"401 ignores body", 401, `{"message":"jwt expired"}`, apperror.ErrUnauthorized, "No autorizado - Por favor inicia sesión", "jwt expired"},
		{"401 html body", 401, `<html>nope</html>`, apperror.ErrUnauthorized, "No autorizado - Por favor inicia sesión", ""},
		{"404", 404, `{"message":"Proyecto no existe"}`, apperror.ErrNotFound, apperror.MsgNotFound, "Proyecto no existe"},
		{"500", 500, `{"message":"db down"}`, apperror.ErrServer, "Error del servidor (500)", "db down"},
		{"403 is server error", 403, `{}`, apperror.ErrServer, "Error del servidor (403)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newBackend(t, tt.status, tt.body)
			rec := &fakeRecorder{}
			c := newTestClient(t, srv.URL, WithRecorder(rec))

			_, err := c.Send(context.Background(), Request{Path: "/x", Route: "/x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantMessage, appErr.Message)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.wantServer, appErr.ServerMessage)
			assert.Len(t, rec.calls, 1)
		})
	}
}

func TestSend_NetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens there anymore

	rec := &fakeRecorder{}
	c := newTestClient(t, url, WithRecorder(rec))

	_, err := c.Send(context.Background(), Request{Path: "/ranking"})
	assert.ErrorIs(t, err, apperror.ErrNetworkUnavailable)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 0, appErr.Status)
	assert.Equal(t, apperror.MsgNetworkUnavailable, appErr.Message)
	assert.Equal(t, []string{"GET /ranking network_unavailable"}, rec.calls)
}

func TestSend_CanceledContextIsNotANetworkError(t *testing.T) {
	srv, _ := newBackend(t, 200, `{}`)
	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, Request{Path: "/ranking"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperror.ErrNetworkUnavailable)
}

func TestLoggableBody_RedactsSecrets(t *testing.T) {
	out := loggableBody([]byte(`{"email":"ana@uni.edu","password":"hunter2"}`))

	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &fields))
	assert.Equal(t, "ana@uni.edu", fields["email"])
	assert.Equal(t, "[redacted]", fields["password"])

	t.Run("nested in the login envelope", func(t *testing.T) {
		out := loggableBody([]byte(`{"proceso":true,"data":{"token":"SECRET-BEARER","user":{"id":"u1"}}}`))

		assert.NotContains(t, out, "SECRET-BEARER")
		var env struct {
			Data struct {
				Token string         `json:"token"`
				User  map[string]any `json:"user"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &env))
		assert.Equal(t, "[redacted]", env.Data.Token)
		assert.Equal(t, "u1", env.Data.User["id"])
	})

	t.Run("inside arrays", func(t *testing.T) {
		out := loggableBody([]byte(`{"ok":true,"sessions":[{"token":"a1"},{"token":"b2"}]}`))

		assert.NotContains(t, out, "a1")
		assert.NotContains(t, out, "b2")
	})

	t.Run("nothing sensitive is left untouched", func(t *testing.T) {
		in := `{"proceso":true,"data":[1,2,3]}`
		assert.Equal(t, in, loggableBody([]byte(in)))
	})
}
