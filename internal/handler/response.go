// Package handler translates HTTP requests into service calls and service
// results into JSON. Handlers hold no business logic.
package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so every error the
// UI receives has the same shape:
//
//	{"error": "unauthorized", "message": "No autorizado - Por favor inicia sesión"}
//
// Validation errors add "field"; errors that came back from the backend add
// "upstreamStatus" with the status the backend answered.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/pagination"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/rating"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error          string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message        string `json:"message"` // Human-readable, safe to display
	Field          string `json:"field,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps the error taxonomy to the status this server answers with.
//
// Failures of the remote backend (ServerError, NetworkUnavailable) are a
// bad gateway from the browser's point of view: the front-end itself is fine.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrNetworkUnavailable):
		return http.StatusBadGateway, "network_unavailable"
	case errors.Is(err, apperror.ErrServer):
		return http.StatusBadGateway, "server_error"
	case errors.Is(err, rating.ErrClosed), errors.Is(err, pagination.ErrClosed):
		return http.StatusGone, "discarded"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// errors.Is walks the whole chain, so wrapping with fmt.Errorf("...: %w")
// anywhere between the API client and here keeps the mapping intact.
func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{
			Error:          kind,
			Message:        appErr.Message,
			Field:          appErr.Field,
			UpstreamStatus: appErr.Status,
		})
		return
	}

	if status == http.StatusGone {
		writeJSON(w, status, ErrorResponse{Error: kind, Message: "La respuesta llegó tarde y fue descartada"})
		return
	}

	// Never expose raw internal errors to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: apperror.UserMessage(err),
	})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "el cuerpo de la solicitud está vacío")
		}
		return apperror.ValidationFailed("body", "el cuerpo de la solicitud no es JSON válido")
	}
	return nil
}

// pageParam reads ?page=N. A missing parameter is 0, meaning "current page".
func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed("page", "la página debe ser un número entero")
	}
	return n, nil
}
