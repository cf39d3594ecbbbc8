package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
)

// EnvelopeKind tells which response convention an endpoint used.
type EnvelopeKind int

const (
	// KindBare is a body with neither "proceso" nor "ok" (a plain array or object).
	KindBare EnvelopeKind = iota
	// KindProceso is { proceso: bool, message?: string, data?: T }.
	KindProceso
	// KindOK is { ok: bool, error?: string, ... }.
	KindOK
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindProceso:
		return "proceso"
	case KindOK:
		return "ok"
	default:
		return "bare"
	}
}

// Envelope is the normalized form of both backend conventions.
//
// Data is the "data" member when present. Otherwise it is the whole body,
// because some endpoints put their payload next to the flag
// ({ ok: true, token: "...", user: {...} }).
type Envelope struct {
	Kind    EnvelopeKind
	Success bool
	Message string
	Data    json.RawMessage
}

// ParseEnvelope classifies body by which discriminating key is present.
func ParseEnvelope(body []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Envelope{Kind: KindBare, Success: true}, nil
	}
	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return Envelope{}, fmt.Errorf("apiclient: response is not valid JSON")
		}
		return Envelope{Kind: KindBare, Success: true, Data: trimmed}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, fmt.Errorf("apiclient: decoding response object: %w", err)
	}

	env := Envelope{Kind: KindBare, Success: true, Data: trimmed}
	var flag json.RawMessage
	switch {
	case fields["proceso"] != nil:
		env.Kind = KindProceso
		flag = fields["proceso"]
	case fields["ok"] != nil:
		env.Kind = KindOK
		flag = fields["ok"]
	default:
		return env, nil
	}

	if err := json.Unmarshal(flag, &env.Success); err != nil {
		return Envelope{}, fmt.Errorf("apiclient: %q flag is not a boolean: %w", env.Kind, err)
	}
	env.Message = serverMessage(trimmed)
	if data, ok := fields["data"]; ok {
		env.Data = data
	}
	return env, nil
}

// Result is the internal form every endpoint is normalized into.
type Result[T any] struct {
	Data    T
	Message string
	Kind    EnvelopeKind
}

// Decode normalizes a 2xx response. A false "proceso"/"ok" flag becomes a
// BadRequest carrying the 2xx status and the server's message.
func Decode[T any](resp *Response) (Result[T], error) {
	var res Result[T]

	env, err := ParseEnvelope(resp.Body)
	if err != nil {
		return res, apperror.ServerError(resp.Status, err.Error())
	}
	res.Kind = env.Kind
	res.Message = env.Message

	if !env.Success {
		return res, apperror.BadRequest(resp.Status, env.Message)
	}

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return res, nil
	}
	if err := json.Unmarshal(env.Data, &res.Data); err != nil {
		return res, apperror.ServerError(resp.Status, fmt.Sprintf("respuesta inesperada: %v", err))
	}
	return res, nil
}

// Do sends req and decodes the normalized payload into T.
func Do[T any](ctx context.Context, c *Client, req Request) (Result[T], error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		var zero Result[T]
		return zero, err
	}
	return Decode[T](resp)
}
