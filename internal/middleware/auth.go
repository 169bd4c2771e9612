package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthMiddleware protects the admin surface with HTTP basic auth; the
// password is checked against a bcrypt hash from the environment. With no
// hash configured the admin surface is open, which is only acceptable in
// local development (config.Validate rejects it in production).
type AdminAuthMiddleware struct {
	user         string
	passwordHash string
}

func NewAdminAuthMiddleware(user, passwordHash string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		user:         user,
		passwordHash: passwordHash,
	}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passwordHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, password, ok := r.BasicAuth()
		if !ok || user != m.user || !checkPassword(m.passwordHash, password) {
			log.Warn().
				Str("path", r.URL.Path).
				Str("remoteAddr", r.RemoteAddr).
				Msg("admin auth failed")
			w.Header().Set("WWW-Authenticate", `Basic realm="chaos-ops admin"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
