package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, cfg Config, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	return signed
}

func TestParseValidToken(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ontrak.identity"}
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub":    "user-1",
		"iss":    cfg.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": []string{"sessions:read", "sessions:write"},
	})

	claims, err := Parse(signed, cfg)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.True(t, claims.HasScope(ScopeSessionsRead))
	require.True(t, claims.HasScope(ScopeSessionsWrite))
	require.False(t, claims.HasScope(ScopeTemplatesWrite))
}

func TestParseSpaceSeparatedScopes(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ontrak.identity"}
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub":    "user-1",
		"iss":    cfg.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": "sessions:read templates:write",
	})

	claims, err := Parse(signed, cfg)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeSessionsRead))
	require.True(t, claims.HasScope(ScopeTemplatesWrite))
}

func TestParseRejectsBadTokens(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ontrak.identity"}

	_, err := Parse("", cfg)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = Parse("garbage", cfg)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Wrong issuer
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub": "user-1",
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = Parse(signed, cfg)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Expired
	signed = signToken(t, cfg, jwt.MapClaims{
		"sub": "user-1",
		"iss": cfg.Issuer,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err = Parse(signed, cfg)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Missing subject
	signed = signToken(t, cfg, jwt.MapClaims{
		"iss": cfg.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = Parse(signed, cfg)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Wrong secret
	signed = signToken(t, Config{Secret: "other", Issuer: cfg.Issuer}, jwt.MapClaims{
		"sub": "user-1",
		"iss": cfg.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = Parse(signed, cfg)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareAttachesClaimsAndSkips(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "ontrak.identity"}
	mw := NewMiddleware(cfg, func(r *http.Request) bool { return r.URL.Path == "/healthz" })

	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	wrapped := mw.Wrap(next)

	// Health checks bypass auth entirely.
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, seen)

	// No token is rejected.
	rr = httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// A valid bearer token flows through with claims attached.
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub":    "user-1",
		"iss":    cfg.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": []string{ScopeSessionsRead},
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, seen)
	require.Equal(t, "user-1", seen.Subject)
}
