package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/salonpanel/salonpanel/libs/failure"
	"github.com/salonpanel/salonpanel/libs/httpx"
)

// RequireAuth verifies the bearer token and stores the caller's BusinessContext on the
// request context.
func RequireAuth(v *Verifier, logger *slog.Logger) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if !strings.HasPrefix(header, "Bearer ") || token == "" {
				httpx.WriteError(w, r, logger, failure.Unauthorized("missing or invalid Authorization header"))
				return
			}

			claims, err := v.Verify(token)
			if err != nil {
				httpx.WriteError(w, r, logger, failure.Unauthorized("invalid token"))
				return
			}
			ctx := WithBusinessContext(r.Context(), FromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects callers whose BusinessContext lacks perm.
func RequirePermission(perm string, logger *slog.Logger) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bc, ok := BusinessContextFrom(r.Context())
			if !ok {
				httpx.WriteError(w, r, logger, failure.Unauthorized("not authenticated"))
				return
			}
			if !bc.HasPermission(perm) {
				httpx.WriteError(w, r, logger, failure.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitKey buckets authenticated requests per business and anonymous ones per client IP.
func RateLimitKey(r *http.Request) string {
	if bc, ok := BusinessContextFrom(r.Context()); ok {
		return "biz:" + bc.BusinessID
	}
	return "ip:" + httpx.ClientIP(r)
}
