package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storefront-service/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware adds a unique request ID to each request and attaches a
// logger carrying it to both the echo and the request context.
func RequestIDMiddleware(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
				c.Request().Header.Set(requestIDHeader, requestID)
			}
			c.Response().Header().Set(requestIDHeader, requestID)

			ctxLogger := base.With(zap.String("request_id", requestID))
			c.Set(logger.EchoKey, ctxLogger)
			c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), ctxLogger)))

			return next(c)
		}
	}
}
