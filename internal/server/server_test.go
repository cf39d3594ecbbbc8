package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/model"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/pagination"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/server"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/service"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/session"
)

type stubAccounts struct{ loggedIn bool }

func (a stubAccounts) Session() session.State {
	if !a.loggedIn {
		return session.State{}
	}
	return session.State{User: &model.User{ID: "u1", Role: model.RoleStudent}, IsAuthenticated: true}
}
func (stubAccounts) Login(context.Context, string, string) (model.User, error) {
	return model.User{}, apperror.Unauthorized(401, "")
}
func (stubAccounts) Logout(context.Context) error { return nil }
func (stubAccounts) Register(context.Context, model.Registration) (model.User, error) {
	return model.User{}, nil
}
func (stubAccounts) RequestPasswordReset(context.Context, string) error { return nil }
func (stubAccounts) ResetPassword(context.Context, string, string) error { return nil }
func (stubAccounts) ChangeRole(context.Context, string, string) error    { return nil }
func (stubAccounts) DeleteUser(context.Context, string) error            { return nil }

type stubCatalog struct{ deleted []string }

func (stubCatalog) Projects(context.Context, int) (service.Listing[service.ProjectCard], error) {
	return service.Listing[service.ProjectCard]{
		Items:      []service.ProjectCard{{Project: model.Project{ID: "p1"}}},
		Pagination: pagination.View{State: pagination.State{CurrentPage: 1, TotalPages: 1}, Window: []int{1}},
	}, nil
}
func (stubCatalog) Ranking(context.Context, int) (service.Listing[service.RankingRow], error) {
	return service.Listing[service.RankingRow]{}, nil
}
func (stubCatalog) Project(_ context.Context, id string) (service.ProjectDetail, error) {
	return service.ProjectDetail{Project: model.Project{ID: id}}, nil
}
func (c *stubCatalog) DeleteProject(_ context.Context, id string) error {
	c.deleted = append(c.deleted, id)
	return nil
}
func (stubCatalog) Evaluate(context.Context, string, rating.Draft) (service.EvaluationResult, error) {
	return service.EvaluationResult{}, apperror.Forbidden("Solo los profesores pueden evaluar proyectos")
}
func (stubCatalog) Draft(string) (rating.Draft, bool) { return rating.Draft{}, false }
func (stubCatalog) DiscardDraft(string)               {}

func newTestServer(t *testing.T, deps server.Deps) *httptest.Server {
	t.Helper()
	if deps.Accounts == nil {
		deps.Accounts = stubAccounts{loggedIn: true}
	}
	if deps.Catalog == nil {
		deps.Catalog = &stubCatalog{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(server.New(server.Config{Port: 0}, deps, logger).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestRoutes(t *testing.T) {
	catalog := &stubCatalog{}
	ts := newTestServer(t, server.Deps{Catalog: catalog})

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/session", "", http.StatusOK},
		{http.MethodPost, "/api/session", `{"email":"a@b.co","password":"x"}`, http.StatusUnauthorized},
		{http.MethodGet, "/api/projects?page=1", "", http.StatusOK},
		{http.MethodGet, "/api/projects/abc", "", http.StatusOK},
		{http.MethodDelete, "/api/projects/abc", "", http.StatusNoContent},
		{http.MethodPost, "/api/projects/abc/evaluations", `{"dimensions":{}}`, http.StatusForbidden},
		{http.MethodGet, "/api/projects/abc/evaluations/draft", "", http.StatusNotFound},
		{http.MethodGet, "/api/ranking", "", http.StatusOK},
		{http.MethodPut, "/api/users/u1/role", `{"role":"admin"}`, http.StatusNoContent},
		{http.MethodDelete, "/api/users/u1", "", http.StatusOK},
		{http.MethodGet, "/api/nothing-here", "", http.StatusNotFound},
		{http.MethodPatch, "/api/session", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
	assert.Equal(t, []string{"abc"}, catalog.deleted)
}

func TestWriteRoutesNeedSession(t *testing.T) {
	catalog := &stubCatalog{}
	ts := newTestServer(t, server.Deps{Accounts: stubAccounts{}, Catalog: catalog})

	routes := []struct{ method, path string }{
		{http.MethodDelete, "/api/projects/abc"},
		{http.MethodPost, "/api/projects/abc/evaluations"},
		{http.MethodGet, "/api/projects/abc/evaluations/draft"},
		{http.MethodDelete, "/api/projects/abc/evaluations/draft"},
		{http.MethodPut, "/api/users/u1/role"},
		{http.MethodDelete, "/api/users/u1"},
	}
	for _, rt := range routes {
		req, err := http.NewRequest(rt.method, ts.URL+rt.path, strings.NewReader(`{}`))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", rt.method, rt.path)
	}
	assert.Empty(t, catalog.deleted)

	// Reading stays public.
	resp, err := http.Get(ts.URL + "/api/projects/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, server.Deps{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("served from the given registry", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: "red_test_total", Help: "test"})
		reg.MustRegister(c)
		c.Inc()

		ts := newTestServer(t, server.Deps{Metrics: reg})
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "red_test_total 1")
	})

	t.Run("absent without a registry", func(t *testing.T) {
		ts := newTestServer(t, server.Deps{})
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRun_ClosesResourcesInReverseOrder(t *testing.T) {
	var order []string
	closer := func(name string) io.Closer {
		return server.CloserFunc(func() error {
			order = append(order, name)
			return nil
		})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New(server.Config{Port: 0, ShutdownTimeout: time.Second}, server.Deps{
		Accounts: stubAccounts{loggedIn: true},
		Catalog:  &stubCatalog{},
		Closers:  []io.Closer{closer("db"), closer("catalog")},
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"catalog", "db"}, order)
}
