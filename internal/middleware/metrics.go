package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	metrics "storefront-service/prometheus"
)

// MetricsMiddleware adds prometheus metrics to track HTTP requests
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
			// Echo writes the error response after the middleware chain returns
			status = he.Code
		}

		duration := time.Since(start).Seconds()
		labels := prometheus.Labels{
			"endpoint": c.Path(),
			"method":   c.Request().Method,
			"status":   strconv.Itoa(status),
		}

		metrics.HTTPRequestCounter.With(labels).Inc()
		metrics.RequestDuration.With(labels).Observe(duration)
		if category := metrics.StatusCategory(status); category != "" {
			metrics.HTTPStatusCategoryCounter.With(prometheus.Labels{
				"category": category,
				"method":   labels["method"],
				"endpoint": labels["endpoint"],
			}).Inc()
		}

		return err
	}
}
