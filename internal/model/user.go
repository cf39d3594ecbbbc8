// Package model defines the data structures exchanged with the remote
// backend and handed to the UI layer.
package model

import "encoding/json"

// Roles known to the backend. Role strings are passed through untouched;
// these constants exist for comparisons in the UI layer.
const (
	RoleStudent   = "estudiante"
	RoleProfessor = "profesor"
	RoleAdmin     = "admin"
)

// User is the minimal profile cached with the session.
//
// WHY ALL STRINGS (no pointers)?
// A session restored from a damaged cache only knows the user ID. Empty
// strings for the other fields are the documented "minimal identity" and
// are safe to display, so there is no nil case for callers to handle.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// IsProfessor reports whether the user may submit evaluations.
func (u User) IsProfessor() bool {
	return u.Role == RoleProfessor || u.Role == RoleAdmin
}

// UnmarshalJSON accepts the backend's "_id" as a fallback for "id".
func (u *User) UnmarshalJSON(b []byte) error {
	type alias User
	var w struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*u = User(w.alias)
	if u.ID == "" {
		u.ID = w.MongoID
	}
	return nil
}

// Registration is the sign-up form.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}
