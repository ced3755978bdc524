package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Gfacello/ute-energy-cost/pkg/log"
)

// requireAuth protects the mutating endpoints with an OIDC bearer token,
// meant for Cloud Scheduler style callers. With no audience configured the
// endpoints are open, which is the expected setup on a private network.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		if s.oidcVerifier == nil {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Ctx(ctx).WarnContext(ctx, "missing auth header")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).ErrorContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		idToken, err := s.oidcVerifier(ctx, token)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if s.updateEmail != "" {
			var claims struct {
				Email string `json:"email"`
			}
			if err := idToken.Claims(&claims); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "failed to parse token claims", slog.Any("error", err))
				writeJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(claims.Email), []byte(s.updateEmail)) != 1 {
				log.Ctx(ctx).WarnContext(ctx, "email mismatch", slog.String("got", claims.Email))
				writeJSONError(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authSubject", idToken.Subject)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
