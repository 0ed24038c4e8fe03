package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storefront-service/internal/model"
	"storefront-service/pkg/jwtutil"
	"storefront-service/pkg/logger"
	"storefront-service/prometheus"
)

const claimsKey = "user"

// Claims returns the session claims set by JWTAuthMiddleware or OptionalAuth
func Claims(c echo.Context) (*jwtutil.UserClaims, bool) {
	claims, ok := c.Get(claimsKey).(*jwtutil.UserClaims)
	return claims, ok
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": msg})
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(c echo.Context) (string, string) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", "Missing authorization header"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

// JWTAuthMiddleware creates a middleware that validates JWT tokens
func JWTAuthMiddleware(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			tokenString, problem := bearerToken(c)
			if problem != "" {
				log.Warn(problem)
				prometheus.RecordAuthError("missing_token")
				return unauthorized(c, problem)
			}

			claims, err := jwtUtil.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return unauthorized(c, "Invalid or expired token")
			}

			c.Set(claimsKey, claims)
			log.Debug("JWT token validated successfully",
				zap.String("user_id", claims.UserID),
				zap.String("email", claims.Email))

			return next(c)
		}
	}
}

// OptionalAuth attaches claims when a valid token is present and lets the
// request through either way.
func OptionalAuth(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokenString, problem := bearerToken(c); problem == "" {
				if claims, err := jwtUtil.ValidateToken(tokenString); err == nil {
					c.Set(claimsKey, claims)
				} else {
					logger.FromEcho(c).Debug("Ignoring invalid token on public route", zap.Error(err))
				}
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects sessions without the admin role. It must run after
// JWTAuthMiddleware.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := Claims(c)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}
		if claims.Role != string(model.RoleAdmin) {
			logger.FromEcho(c).Warn("Admin route denied", zap.String("user_id", claims.UserID))
			prometheus.RecordAuthError("forbidden")
			return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "Forbidden"})
		}
		return next(c)
	}
}
