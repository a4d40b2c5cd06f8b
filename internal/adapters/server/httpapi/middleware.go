package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/evanschultz/kanboard/internal/auth"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// authenticate validates the bearer token and stores the caller's user id in the
// request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeJSONError(w, http.StatusUnauthorized, APIError{Code: "unauthorized", Message: "authorization header required"})
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeJSONError(w, http.StatusUnauthorized, APIError{Code: "unauthorized", Message: "invalid authorization format"})
			return
		}

		claims, err := h.tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				writeJSONError(w, http.StatusUnauthorized, APIError{Code: "unauthorized", Message: "token expired"})
			case errors.Is(err, auth.ErrInvalidToken):
				writeJSONError(w, http.StatusUnauthorized, APIError{Code: "unauthorized", Message: "invalid token"})
			default:
				h.logger.Error("failed to validate token", "err", err)
				writeJSONError(w, http.StatusInternalServerError, APIError{Code: "internal_error", Message: "authentication error"})
			}
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userIDFrom returns the authenticated caller stored by authenticate.
func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey).(string)
	return id
}
