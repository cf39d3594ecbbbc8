// Package apperror defines the error taxonomy shared by the API client,
// the session store, the rating form and the front-end handlers.
//
// Every error the core returns is an *AppError wrapping one of the sentinel
// values below, so callers branch with errors.Is and read the user-facing
// message with errors.As:
//
//	var appErr *apperror.AppError
//	if errors.As(err, &appErr) {
//	    toast(appErr.Message)
//	}
//	if errors.Is(err, apperror.ErrUnauthorized) {
//	    redirectToLogin()
//	}
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrServer             = errors.New("server error")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrValidation         = errors.New("Validation Error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
)

// Fixed user-facing messages. Unauthorized and NotFound never echo the
// server body, whatever it says.
const (
	MsgUnauthorized       = "No autorizado - Por favor inicia sesión"
	MsgNotFound           = "Recurso no encontrado"
	MsgBadRequest         = "Solicitud inválida"
	MsgNetworkUnavailable = "No se pudo conectar con el servidor"
)

type AppError struct {
	Err           error  // sentinel from the taxonomy
	Message       string // Human-readable, safe to show in the UI
	Status        int    // HTTP status, 0 when no response was received
	ServerMessage string // message found in the response body, if any
	Field         string // Optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// BadRequest prefers the server's own explanation because 400s usually carry
// form feedback ("el correo ya está registrado").
func BadRequest(status int, serverMessage string) *AppError {
	msg := serverMessage
	if msg == "" {
		msg = MsgBadRequest
	}
	return &AppError{
		Err:           ErrBadRequest,
		Message:       msg,
		Status:        status,
		ServerMessage: serverMessage,
	}
}

func Unauthorized(status int, serverMessage string) *AppError {
	return &AppError{
		Err:           ErrUnauthorized,
		Message:       MsgUnauthorized,
		Status:        status,
		ServerMessage: serverMessage,
	}
}

func NotFound(status int, serverMessage string) *AppError {
	return &AppError{
		Err:           ErrNotFound,
		Message:       MsgNotFound,
		Status:        status,
		ServerMessage: serverMessage,
	}
}

// ServerError covers every non-2xx status without a dedicated kind.
func ServerError(status int, serverMessage string) *AppError {
	return &AppError{
		Err:           ErrServer,
		Message:       fmt.Sprintf("Error del servidor (%d)", status),
		Status:        status,
		ServerMessage: serverMessage,
	}
}

// NetworkUnavailable is returned when no response arrived at all
// (DNS failure, refused connection, timeout).
func NetworkUnavailable(cause error) *AppError {
	e := &AppError{
		Err:     ErrNetworkUnavailable,
		Message: MsgNetworkUnavailable,
	}
	if cause != nil {
		e.ServerMessage = cause.Error()
	}
	return e
}

// FromStatus maps a non-2xx status to its taxonomy entry.
func FromStatus(status int, serverMessage string) *AppError {
	switch status {
	case 400:
		return BadRequest(status, serverMessage)
	case 401:
		return Unauthorized(status, serverMessage)
	case 404:
		return NotFound(status, serverMessage)
	default:
		return ServerError(status, serverMessage)
	}
}

// ValidationFailed is raised client-side before any network call.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict signals that an equivalent request is already in flight.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden is a client-side refusal: the session is valid but its role
// may not perform the action.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// UserMessage returns the message a UI should display for err.
// Errors outside the taxonomy get a generic text so internals never leak.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Ocurrió un error inesperado"
}
