package middleware

import (
	"context"
	"net/http"
	"strings"

	pkgauth "github.com/freshmartsg/freshmart-backend/pkg/auth"
	"github.com/freshmartsg/freshmart-backend/pkg/config"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
)

// AuthOptional seeds the context with claims when a valid bearer token is
// present and lets the request through anonymously otherwise. Cart routes
// use it so guests and shoppers share one surface.
func AuthOptional(cfg config.JWTConfig, verifier SessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil || claims.ID == "" {
				// a bad token downgrades to guest rather than failing the request
				next.ServeHTTP(w, r)
				return
			}

			if verifier != nil {
				ok, verr := verifier.HasSession(r.Context(), claims.ID)
				if verr != nil || !ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID.String())
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
			ctx = context.WithValue(ctx, ctxAccessID, claims.ID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
