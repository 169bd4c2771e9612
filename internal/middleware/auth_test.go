package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminAuthMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows request with correct credentials", func(t *testing.T) {
		m := NewAdminAuthMiddleware("admin", string(hash))

		req := httptest.NewRequest(http.MethodGet, "/displays", nil)
		req.SetBasicAuth("admin", "correct-horse")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		m := NewAdminAuthMiddleware("admin", string(hash))

		req := httptest.NewRequest(http.MethodGet, "/displays", nil)
		req.SetBasicAuth("admin", "wrong")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("rejects wrong user", func(t *testing.T) {
		m := NewAdminAuthMiddleware("admin", string(hash))

		req := httptest.NewRequest(http.MethodGet, "/displays", nil)
		req.SetBasicAuth("root", "correct-horse")
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects missing credentials", func(t *testing.T) {
		m := NewAdminAuthMiddleware("admin", string(hash))

		req := httptest.NewRequest(http.MethodGet, "/displays", nil)
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("passes through with no hash configured", func(t *testing.T) {
		m := NewAdminAuthMiddleware("admin", "")

		req := httptest.NewRequest(http.MethodGet, "/displays", nil)
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBodyLimitMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects oversized content length", func(t *testing.T) {
		m := NewBodyLimitMiddleware(16)

		req := httptest.NewRequest(http.MethodPost, "/displays/pairing/register", nil)
		req.ContentLength = 1024
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("allows small bodies", func(t *testing.T) {
		m := NewBodyLimitMiddleware(1024)

		req := httptest.NewRequest(http.MethodPost, "/displays/pairing/register", nil)
		req.ContentLength = 16
		rec := httptest.NewRecorder()

		m.Handler(okHandler).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
