package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/allez-events/server/internal/auth"
	"github.com/allez-events/server/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func okHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour, "allez")
	handler := Authenticate(manager, "test")(okHandler(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour, "allez")
	handler := Authenticate(manager, "test")(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateStoresSubject(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour, "allez")
	token, err := manager.Generate("auth0|6441abc")
	require.NoError(t, err)

	var got auth.Subject
	handler := Authenticate(manager, "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := SubjectFromContext(r.Context())
		require.True(t, ok)
		got = subject
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "auth0|6441abc", got.Raw)
	require.Equal(t, "6441abc", got.Key)
}

func TestCorrelationIDGeneratesAndEchoes(t *testing.T) {
	handler := CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	limiter := RateLimit(config.RateLimitConfig{PublicPerMinute: 2})
	handler := limiter(okHandler(t))

	statuses := []int{}
	for range 4 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	require.Equal(t, http.StatusOK, statuses[0])
	require.Equal(t, http.StatusOK, statuses[1])
	require.Equal(t, http.StatusTooManyRequests, statuses[2])
	require.Equal(t, http.StatusTooManyRequests, statuses[3])
}

func TestRateLimitExemptsHealthProbes(t *testing.T) {
	limiter := RateLimit(config.RateLimitConfig{PublicPerMinute: 1})
	handler := limiter(okHandler(t))

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cfg := config.CORSConfig{AllowedOrigins: []string{"https://allez.events"}}
	handler := CORS(cfg, zerolog.Nop())(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://allez.events")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "https://allez.events", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.CORSConfig{AllowAllOrigins: true}
	handler := CORS(cfg, zerolog.Nop())(okHandler(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(false)(okHandler(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	handler = SecurityHeaders(true)(okHandler(t))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}
