package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gostly/gostly-backend/api/responses"
	pkgerrors "github.com/gostly/gostly-backend/pkg/errors"
	"github.com/gostly/gostly-backend/pkg/logger"
)

const adminSecretHeader = "X-Admin-Secret"

// AdminSecret guards onboarding routes with a shared secret. An unset secret
// disables the routes entirely.
func AdminSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access disabled"))
				return
			}
			provided := strings.TrimSpace(r.Header.Get(adminSecretHeader))
			if provided == "" {
				provided = bearerToken(r)
			}
			if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid admin secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
