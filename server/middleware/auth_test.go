package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateAccessToken(secret, 42, time.Now().Add(time.Hour))
	require.NoError(t, err)

	userID, err := parseAccessToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, int32(42), userID)
}

func TestParseAccessTokenRejects(t *testing.T) {
	secret := "test-secret"

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateAccessToken(secret, 1, time.Now().Add(time.Hour))
		require.NoError(t, err)
		_, err = parseAccessToken("other-secret", token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := GenerateAccessToken(secret, 1, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		_, err = parseAccessToken(secret, token)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := parseAccessToken(secret, "not.a.jwt")
		assert.Error(t, err)
	})
}

func TestAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	e := echo.New()

	handler := Auth(secret)(func(c echo.Context) error {
		userID, ok := UserIDFromContext(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, map[string]int32{"userId": userID})
	})

	t.Run("valid token passes", func(t *testing.T) {
		token, err := GenerateAccessToken(secret, 7, time.Now().Add(time.Hour))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		err = handler(e.NewContext(req, rec))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		err := handler(e.NewContext(req, rec))
		httpErr, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})

	t.Run("malformed header is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()

		err := handler(e.NewContext(req, rec))
		httpErr, ok := err.(*echo.HTTPError)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"), "burst exhausted")
	assert.True(t, rl.Allow("user-2"), "keys are independent")
}
