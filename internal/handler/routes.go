package handler

import (
	"github.com/labstack/echo/v4"

	mid "storefront-service/internal/middleware"
	"storefront-service/pkg/jwtutil"
)

// Register mounts every route on e
func (h *Handler) Register(e *echo.Echo, jwtUtil *jwtutil.JWTUtil) {
	authed := mid.JWTAuthMiddleware(jwtUtil)
	optional := mid.OptionalAuth(jwtUtil)
	admin := []echo.MiddlewareFunc{authed, mid.RequireAdmin}

	e.GET("/health", h.HealthCheck)
	e.GET("/metrics", MetricsHandler)

	api := e.Group("/api")
	api.GET("/health", h.HealthCheck)
	api.GET("/init", h.Init)
	api.POST("/init", h.Init)
	api.POST("/seed", h.Seed, admin...)

	authAPI := api.Group("/auth")
	authAPI.POST("/login", h.Login)
	authAPI.POST("/register", h.RegisterUser)
	authAPI.GET("/me", h.Me, authed)

	products := api.Group("/products")
	products.GET("", h.ListProducts)
	products.GET("/slug/:slug", h.GetProductBySlug)
	products.GET("/:id", h.GetProduct)
	products.POST("", h.CreateProduct, admin...)
	products.PUT("/:id", h.UpdateProduct, admin...)
	products.DELETE("/:id", h.DeleteProduct, admin...)

	api.POST("/cart/quote", h.QuoteCart)

	orders := api.Group("/orders")
	orders.POST("", h.CreateOrder, optional)
	orders.GET("", h.ListOrders, admin...)
	orders.GET("/mine", h.MyOrders, authed)
	orders.GET("/:id", h.GetOrder)
	orders.PUT("/:id", h.UpdateOrderStatus, admin...)
	orders.DELETE("/:id", h.DeleteOrder, admin...)

	pay := api.Group("/payment")
	pay.POST("/create-intent", h.CreatePaymentIntent)
	pay.GET("/pending", h.PendingPayments, admin...)
	pay.POST("/reconcile/:transactionId", h.ReconcilePayment, admin...)

	api.POST("/ai/generate-seo", h.GenerateSEO, admin...)
	api.GET("/admin/analytics", h.Analytics, admin...)
}
