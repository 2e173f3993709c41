package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/brainduel/api/internal/game"
)

type ctxKey int

const ctxKeyUserID ctxKey = iota

// playerAuthMiddleware resolves the Bearer token to a user id and stores it
// on the request context.
func playerAuthMiddleware(store *game.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(auth, "Bearer ")
			if !found || token == "" {
				// SSE clients cannot set headers; fall back to query param.
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := store.UserIDByToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFrom(r *http.Request) int64 {
	return r.Context().Value(ctxKeyUserID).(int64)
}
