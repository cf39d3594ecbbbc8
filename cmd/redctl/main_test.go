package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/config"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/pagination"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
)

// backend is a minimal Red Networking API.
type backend struct {
	mu     sync.Mutex
	scores []map[string]any
	auths  []string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", func(w http.ResponseWriter, req *http.Request) {
			var creds struct{ Email, Password string }
			_ = json.NewDecoder(req.Body).Decode(&creds)
			if creds.Password != "secreto" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"ok":false,"error":"Credenciales inválidas"}`)
				return
			}
			_, _ = io.WriteString(w, `{"ok":true,"token":"tok-1","user":{"_id":"u1","email":"`+creds.Email+`","name":"Ana","role":"profesor"}}`)
		})
		r.Get("/projects", func(w http.ResponseWriter, req *http.Request) {
			_, _ = io.WriteString(w, `{"proceso":true,"data":{"items":[{"_id":"p1","title":"Red Mesh","scores":[4,5]},{"_id":"p2","title":"Chat"}],"totalPages":1,"currentPage":1}}`)
		})
		r.Post("/projects/{id}/agregar-puntuacion", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(req.Body).Decode(&body)
			b.mu.Lock()
			b.scores = append(b.scores, body)
			b.auths = append(b.auths, req.Header.Get("Authorization"))
			b.mu.Unlock()
			_, _ = io.WriteString(w, `{"proceso":true}`)
		})
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	t.Setenv(config.EnvConfigFile, "")
	t.Setenv(config.EnvAPIURL, ts.URL+"/api")
	t.Setenv(config.EnvDBPath, filepath.Join(t.TempDir(), "session.db"))
	return b
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: redctl")
	assert.Contains(t, stderr, "projects")

	code, _, stderr = runCLI(t, "", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)
}

func TestRun_SessionSurvivesBetweenRuns(t *testing.T) {
	b := newBackend(t)

	code, out, stderr := runCLI(t, "secreto\n", "login", "ana@uni.edu")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Sesión iniciada como Ana (profesor)")

	code, out, _ = runCLI(t, "", "whoami")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "ana@uni.edu")
	assert.Contains(t, out, "profesor")

	code, out, stderr = runCLI(t, "", "rate",
		"-security", "3", "-functionality", "4", "-efficiency", "5", "-design", "2", "-architecture", "5",
		"-feedback", "Buen trabajo", "p1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "★★★½☆ 3.8")

	b.mu.Lock()
	require.Len(t, b.scores, 1)
	assert.InDelta(t, 3.8, b.scores[0]["puntuacion"], 1e-9)
	assert.Equal(t, "Buen trabajo", b.scores[0]["comentario"])
	assert.Equal(t, "Bearer tok-1", b.auths[0])
	b.mu.Unlock()

	code, out, _ = runCLI(t, "", "logout")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Sesión cerrada")

	code, out, _ = runCLI(t, "", "whoami")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No has iniciado sesión")
}

func TestRun_LoginFailure(t *testing.T) {
	newBackend(t)

	code, _, stderr := runCLI(t, "", "login", "-email", "ana@uni.edu", "-password", "mal")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "No autorizado - Por favor inicia sesión")

	code, _, stderr = runCLI(t, "", "login", "-email", "no-es-correo", "-password", "x")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, stderr)
}

func TestRun_RateRequiresLogin(t *testing.T) {
	b := newBackend(t)

	code, _, stderr := runCLI(t, "", "rate",
		"-security", "3", "-functionality", "4", "-efficiency", "5", "-design", "2", "-architecture", "5", "p1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "No autorizado")
	assert.Empty(t, b.scores)
}

func TestRun_Projects(t *testing.T) {
	newBackend(t)

	code, out, stderr := runCLI(t, "", "projects")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Red Mesh")
	assert.Contains(t, out, "4.5 / 5")
	assert.Contains(t, out, "Chat")
	assert.Contains(t, out, "Sin calificaciones")
}

func TestStarString(t *testing.T) {
	assert.Equal(t, "★★★½☆", starString(rating.StarBreakdown(3.8, 5)))
	assert.Equal(t, "☆☆☆☆☆", starString(rating.StarBreakdown(0, 5)))
	assert.Equal(t, "★★★★★", starString(rating.StarBreakdown(5, 5)))
}

func TestPrintWindow(t *testing.T) {
	var b bytes.Buffer
	printWindow(&b, pagination.View{
		State:   pagination.State{CurrentPage: 2, TotalPages: 7},
		Window:  []int{1, 2, 3, 4, 5},
		HasPrev: true,
		HasNext: true,
	}, 2)
	assert.Equal(t, "\nPágina 2 de 7  ‹ 1 [2] 3 4 5 ›\n", b.String())

	b.Reset()
	printWindow(&b, pagination.View{
		State:   pagination.State{CurrentPage: 1, TotalPages: 2},
		Window:  []int{1, 2},
		HasNext: true,
	}, 9)
	assert.Contains(t, b.String(), "La página 9 no existe")

	b.Reset()
	printWindow(&b, pagination.View{State: pagination.State{CurrentPage: 1, TotalPages: 1}}, 1)
	assert.Empty(t, b.String())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana", displayName(model.User{Name: "Ana", Email: "a@b.co"}))
	assert.Equal(t, "a@b.co", displayName(model.User{Email: "a@b.co"}))
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("disk gone") }

func TestAppClose_LogsDatabaseError(t *testing.T) {
	var logs bytes.Buffer
	a := &app{
		db:     failingCloser{},
		logger: slog.New(slog.NewTextHandler(&logs, nil)),
	}

	a.close()

	assert.Contains(t, logs.String(), "closing session database failed")
	assert.Contains(t, logs.String(), "disk gone")
}
