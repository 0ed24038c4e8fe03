package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-service/pkg/jwtutil"
	"storefront-service/pkg/logger"
)

func newJWT() *jwtutil.JWTUtil {
	return jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test", ExpirationHours: 1})
}

func serve(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireAdmin(t *testing.T) {
	j := newJWT()
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		claims, ok := Claims(c)
		require.True(t, ok)
		return c.String(http.StatusOK, claims.UserID)
	}, JWTAuthMiddleware(j), RequireAdmin)

	assert.Equal(t, http.StatusUnauthorized, serve(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "garbage").Code)

	customer, err := j.GenerateToken("u1", "c@example.com", "customer")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(e, customer).Code)

	admin, err := j.GenerateToken("u2", "a@example.com", "admin")
	require.NoError(t, err)
	rec := serve(e, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", rec.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	j := newJWT()
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		if claims, ok := Claims(c); ok {
			return c.String(http.StatusOK, claims.UserID)
		}
		return c.String(http.StatusOK, "anonymous")
	}, OptionalAuth(j))

	assert.Equal(t, "anonymous", serve(e, "").Body.String())
	assert.Equal(t, "anonymous", serve(e, "garbage").Body.String())

	token, err := j.GenerateToken("u1", "c@example.com", "customer")
	require.NoError(t, err)
	assert.Equal(t, "u1", serve(e, token).Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(RequestIDMiddleware(zap.NewNop()))
	e.GET("/", func(c echo.Context) error {
		assert.NotNil(t, logger.FromContext(c.Request().Context()))
		_, ok := c.Get(logger.EchoKey).(*zap.Logger)
		assert.True(t, ok)
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(e, "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}
