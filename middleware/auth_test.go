package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func protected(t *testing.T, captured *int) http.Handler {
	t.Helper()
	return Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		*captured = id
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthenticateRoundTrip(t *testing.T) {
	token, err := MintToken(testSecret, 42)
	require.NoError(t, err)

	var captured int
	handler := protected(t, &captured)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 42, captured)
}

func TestAuthenticateQueryToken(t *testing.T) {
	token, err := MintToken(testSecret, 7)
	require.NoError(t, err)

	var captured int
	handler := protected(t, &captured)

	req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, captured)
}

func TestAuthenticateMissingToken(t *testing.T) {
	var captured int
	handler := protected(t, &captured)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, captured)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	token, err := MintToken("other-secret", 42)
	require.NoError(t, err)

	var captured int
	handler := protected(t, &captured)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, captured)
}

func TestGetUserIDFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetUserIDFromContext(req.Context())
	assert.ErrorIs(t, err, ErrNoUserInContext)
}
