package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/Jennorg/red-networking-frontend-sub000/internal/apperror"
	"github.com/Jennorg/red-networking-frontend-sub000/internal/session"
)

// SessionSource reports the current session. *service.AccountService
// implements it.
type SessionSource interface {
	Session() session.State
}

// RequireSession answers 401, with the usual {error, message} body, while
// nobody is logged in. Role checks stay in the services.
func RequireSession(src SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if st := src.Session(); !st.IsAuthenticated || st.User == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"message": apperror.MsgUnauthorized,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
