package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/models"
)

type contextKey string

const UserIDKey contextKey = "userID"

// Identify attaches the caller's user id to the context when the request
// carries a valid bearer token. Requests without one pass through anonymous.
func Identify(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := tokens.UserIDFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests. It must run after Identify.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFrom(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFrom extracts the authenticated user id from context.
func UserIDFrom(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok && userID > 0
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
