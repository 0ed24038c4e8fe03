package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storefront-service/internal/analytics"
	"storefront-service/internal/seo"
	"storefront-service/pkg/logger"
	"storefront-service/prometheus"
)

// Init creates the default admin and sample catalog when they are missing
func (h *Handler) Init(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.bootstrap.Init(ctx)
	if err != nil {
		return fail(c, "Database initialization failed", err)
	}

	logger.FromEcho(c).Info("Database initialized",
		zap.Bool("admin_created", res.AdminCreated),
		zap.Bool("products_seeded", res.ProductsSeeded),
		zap.Int64("product_count", res.ProductCount))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Database initialized successfully",
		"data":    res,
	})
}

// Seed replaces the catalog with the sample products
func (h *Handler) Seed(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	count, err := h.bootstrap.Seed(ctx)
	if err != nil {
		return fail(c, "Seeding failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Database seeded successfully",
		"count":   count,
	})
}

// GenerateSEO writes search metadata for a product description
func (h *Handler) GenerateSEO(c echo.Context) error {
	var req seo.Request
	if err := c.Bind(&req); err != nil {
		return fail(c, "Invalid SEO request", errBadRequest)
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.seo.Generate(ctx, req)
	if err != nil {
		return fail(c, "SEO generation failed", err)
	}

	prometheus.RecordSEOGeneration(res.Source)
	return respond(c, http.StatusOK, res)
}

// Analytics returns the admin dashboard figures
func (h *Handler) Analytics(c echo.Context) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	dash, err := analytics.Load(ctx, h.store)
	if err != nil {
		return fail(c, "Failed to compute analytics", err)
	}

	prometheus.UpdateInventoryUnits(dash.InventoryUnits)
	return respond(c, http.StatusOK, dash)
}
