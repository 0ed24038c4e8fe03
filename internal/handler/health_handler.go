package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storefront-service/pkg/logger"
	"storefront-service/prometheus"
)

// HealthCheck reports whether the store answers a ping
func (h *Handler) HealthCheck(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := h.store.Ping(ctx); err != nil {
		logger.FromEcho(c).Error("Health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"success":   false,
			"error":     "Database connection failed",
			"timestamp": now,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"message":   "Database connected",
		"timestamp": now,
	})
}

// MetricsHandler exposes the Prometheus registry
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
