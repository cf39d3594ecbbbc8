// Package auth inspects the access tokens issued by the remote backend.
//
// WHO VERIFIES THE TOKEN?
// The backend signs the JWT and is the only party holding the secret, so it
// is also the only party that can verify it. The client still benefits from
// reading the payload:
//   - "exp" tells us a cached session is stale before we send a doomed request
//   - "sub" identifies the user when the cached profile is lost
//
// Reading claims without verifying the signature is fine for those two uses
// because nothing here grants access: the backend re-checks the token on
// every call and answers 401 if it was tampered with.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//
// Tokens that are not JWTs (opaque session strings) are legal too; Inspect
// reports them as ErrOpaqueToken and callers treat them as non-expiring.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken means the token could not be decoded as a JWT.
var ErrOpaqueToken = errors.New("auth: token is not a JWT")

// Claims is the part of the token payload the client cares about.
type Claims struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no "exp"
}

// HasExpiry reports whether the token declared an expiry time.
func (c Claims) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// Expired reports whether the token expired at or before now.
// Tokens without "exp" never expire from the client's point of view.
func (c Claims) Expired(now time.Time) bool {
	return c.HasExpiry() && !now.Before(c.ExpiresAt)
}

// Inspect decodes the token payload WITHOUT verifying the signature.
func Inspect(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrOpaqueToken
	}

	var rc jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &rc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	c := Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}
