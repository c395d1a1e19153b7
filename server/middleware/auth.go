package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	// userIDContextKey carries the authenticated user id through echo.
	userIDContextKey = "iagent.user-id"

	tokenIssuer = "iagent"

	// AccessTokenDuration is the lifetime of minted access tokens.
	AccessTokenDuration = 7 * 24 * time.Hour
)

// GenerateAccessToken mints a signed JWT whose subject is the user id.
func GenerateAccessToken(secret string, userID int32, expiresAt time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(int64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// parseAccessToken validates the token signature and claims and returns
// the user id.
func parseAccessToken(secret, tokenString string) (int32, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed subject claim: %w", err)
	}
	return int32(userID), nil
}

// Auth returns middleware enforcing a valid bearer token and stashing
// the user id in the request context.
func Auth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			userID, err := parseAccessToken(secret, token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
			c.Set(userIDContextKey, userID)
			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated user id set by Auth.
func UserIDFromContext(c echo.Context) (int32, bool) {
	userID, ok := c.Get(userIDContextKey).(int32)
	return userID, ok
}

// SetUserID stashes a user id directly; used by tests.
func SetUserID(c echo.Context, userID int32) {
	c.Set(userIDContextKey, userID)
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
