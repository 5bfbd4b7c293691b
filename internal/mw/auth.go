package mw

import (
	"context"
	"net/http"

	"bbdist/internal/httpio"
	"bbdist/internal/token"
)

type contextKey string

const ClaimsCtxKey contextKey = "claims"

type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

func AuthMiddleware(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				_ = httpio.ErrorResponse(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			raw, ok := token.FromBearer(authHeader)
			if !ok {
				_ = httpio.ErrorResponse(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			claims, err := parser.Parse(raw)
			if err != nil {
				_ = httpio.ErrorResponse(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsCtxKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok || !claims.HasRole(role) {
				_ = httpio.ErrorResponse(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFrom(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ClaimsCtxKey).(*token.Claims)
	return claims, ok
}
