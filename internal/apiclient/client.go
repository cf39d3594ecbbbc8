// Package apiclient is the single choke point for calls to the remote
// Red Networking backend.
//
// REQUEST PIPELINE:
//
//	Send(req)
//	  → build *http.Request (JSON body, query string)
//	  → interceptors, in order (Content-Type default, request ID, bearer token)
//	  → debug log of the outbound shape
//	  → http.Client.Do
//	  → debug log of the inbound shape, metrics
//	  → 2xx: Response with the body untouched
//	    else: *apperror.AppError from the taxonomy
//
// Interceptors are plain functions over *http.Request, the same decorator
// idea as HTTP middleware but on the client side. They never overwrite a
// header the caller set explicitly.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/metrics"
)

const (
	// maxBodyBytes caps how much of a response we read into memory.
	maxBodyBytes = 10 << 20
	// maxLoggedBody keeps debug lines readable.
	maxLoggedBody = 2048

	HeaderRequestID = "X-Request-ID"
)

// Request describes one outbound call.
type Request struct {
	Method string
	// Path is joined to the client's base URL. Absolute URLs are used as-is.
	Path string
	// Route is the low-cardinality metrics label ("/projects/{id}").
	// Defaults to Path.
	Route  string
	Query  url.Values
	Body   any // JSON-encoded; []byte and json.RawMessage are sent verbatim
	Header http.Header
}

// Response is a successful (2xx) reply. Body is exactly what the server sent.
type Response struct {
	Status int
	Header http.Header
	Body   json.RawMessage
}

// Interceptor mutates an outbound request before it is sent.
type Interceptor func(*http.Request) error

// Client sends requests to the backend.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	interceptors []Interceptor
	recorder     metrics.Recorder
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource attaches "Authorization: Bearer <token>" whenever src has
// a token and the request carries no Authorization header of its own.
func WithTokenSource(src oauth2.TokenSource) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, BearerToken(src)) }
}

// WithInterceptors appends extra interceptors after the built-in ones.
func WithInterceptors(in ...Interceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, in...) }
}

// WithRecorder reports every call to a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parsing base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("apiclient: base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:      u,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		interceptors: []Interceptor{DefaultContentType, RequestID},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DefaultContentType sets Content-Type to JSON unless the caller chose one.
func DefaultContentType(r *http.Request) error {
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json")
	}
	return nil
}

// RequestID tags the request so client and server logs can be correlated.
// Calls made while serving a chi request reuse that request's id; anything
// else gets a fresh xid.
func RequestID(r *http.Request) error {
	if r.Header.Get(HeaderRequestID) != "" {
		return nil
	}
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = xid.New().String()
	}
	r.Header.Set(HeaderRequestID, id)
	return nil
}

// BearerToken returns an interceptor reading the token from src.
// No session means no header; the backend then answers 401 if it cares.
func BearerToken(src oauth2.TokenSource) Interceptor {
	return func(r *http.Request) error {
		if r.Header.Get("Authorization") != "" {
			return nil
		}
		tok, err := src.Token()
		if err != nil || tok == nil || tok.AccessToken == "" {
			return nil
		}
		tok.SetAuthHeader(r)
		return nil
	}
}

func (c *Client) resolve(req Request) (string, error) {
	var u *url.URL
	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		parsed, err := url.Parse(req.Path)
		if err != nil {
			return "", err
		}
		u = parsed
	} else {
		copied := *c.baseURL
		copied.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
		u = &copied
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

// Send performs the request and returns the raw 2xx response, or an error
// from the apperror taxonomy.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	route := req.Route
	if route == "" {
		route = req.Path
	}

	target, err := c.resolve(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: building URL for %s: %w", req.Path, err)
	}

	payload, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encoding body for %s %s: %w", method, req.Path, err)
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: creating request %s %s: %w", method, target, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for _, intercept := range c.interceptors {
		if err := intercept(httpReq); err != nil {
			return nil, fmt.Errorf("apiclient: interceptor on %s %s: %w", method, target, err)
		}
	}

	requestID := httpReq.Header.Get(HeaderRequestID)
	c.logger.Debug("api request",
		slog.String("requestID", requestID),
		slog.String("method", method),
		slog.String("url", target),
		slog.Bool("auth", httpReq.Header.Get("Authorization") != ""),
		slog.String("body", loggableBody(payload)),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		duration := time.Since(start)
		if errors.Is(err, context.Canceled) {
			c.observe(method, route, 0, "canceled", duration)
			return nil, fmt.Errorf("apiclient: %s %s: %w", method, target, context.Canceled)
		}
		c.logger.Debug("api request failed without response",
			slog.String("requestID", requestID),
			slog.String("method", method),
			slog.String("url", target),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		c.observe(method, route, 0, "network_unavailable", duration)
		return nil, apperror.NetworkUnavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	duration := time.Since(start)
	if err != nil {
		c.observe(method, route, resp.StatusCode, "network_unavailable", duration)
		return nil, apperror.NetworkUnavailable(err)
	}

	c.logger.Debug("api response",
		slog.String("requestID", requestID),
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
		slog.String("body", loggableBody(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appErr := apperror.FromStatus(resp.StatusCode, serverMessage(body))
		c.observe(method, route, resp.StatusCode, outcome(appErr), duration)
		return nil, appErr
	}

	c.observe(method, route, resp.StatusCode, "ok", duration)
	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

func (c *Client) observe(method, route string, status int, outcome string, d time.Duration) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveRequest(method, route, status, outcome, d)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, apperror.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, apperror.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrNetworkUnavailable):
		return "network_unavailable"
	default:
		return "server_error"
	}
}

// serverMessage pulls a human message out of an error body, whichever
// envelope the endpoint uses.
func serverMessage(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "mensaje", "msg"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// sensitiveKeys are masked in debug logs.
var sensitiveKeys = map[string]bool{
	"password":        true,
	"newPassword":     true,
	"confirmPassword": true,
	"token":           true,
}

func loggableBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err == nil && redact(doc) {
		if b, err := json.Marshal(doc); err == nil {
			body = b
		}
	}
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "...(truncated)"
	}
	return string(body)
}

// redact masks sensitiveKeys at any depth and reports whether it changed v.
func redact(v any) bool {
	changed := false
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if sensitiveKeys[k] {
				t[k] = "[redacted]"
				changed = true
				continue
			}
			if redact(child) {
				changed = true
			}
		}
	case []any:
		for _, child := range t {
			if redact(child) {
				changed = true
			}
		}
	}
	return changed
}
