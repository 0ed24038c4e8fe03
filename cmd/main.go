package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/auth"
	"storefront-service/internal/bootstrap"
	"storefront-service/internal/checkout"
	"storefront-service/internal/events"
	"storefront-service/internal/handler"
	mid "storefront-service/internal/middleware"
	"storefront-service/internal/payment"
	"storefront-service/internal/seo"
	"storefront-service/internal/validation"
	"storefront-service/pkg/config"
	"storefront-service/pkg/database"
	"storefront-service/pkg/jwtutil"
	"storefront-service/pkg/logger"
	"storefront-service/prometheus"
)

var version = "dev"

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: appConfig.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting storefront-service", appConfig.LogConfig()...)

	// Money is rendered as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	st, backend, err := database.Open(ctx, appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	prometheus.SetInfo(version, backend)
	log.Info("Database connection established", zap.String("backend", backend))

	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      appConfig.JWT.SigningKey,
		ExpirationHours: appConfig.JWT.ExpirationHours,
	})

	publisher := events.FromConfig(appConfig.Kafka.Brokers, appConfig.Kafka.OrderTopic)
	gateway := payment.NewStripe(appConfig.Payment.StripeSecretKey, log)
	v := validation.New()

	authSvc := auth.NewService(st.Users(), jwtUtil, log)
	h := handler.New(handler.Options{
		Store:     st,
		Checkout:  checkout.NewService(st, gateway, publisher, v, appConfig.Payment.Currency, log),
		Auth:      authSvc,
		Gateway:   gateway,
		SEO:       seo.NewGenerator(appConfig.AI.APIKey, appConfig.AI.BaseURL, appConfig.AI.Model, appConfig.Site.BaseURL, log),
		Bootstrap: bootstrap.New(st, authSvc, appConfig.Admin.Email, appConfig.Admin.Password, log),
		Publisher: publisher,
		Currency:  appConfig.Payment.Currency,
		Timeout:   appConfig.Server.RequestTimeout,
	})

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator(v)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(mid.RequestIDMiddleware(log))
	e.Use(mid.MetricsMiddleware)
	e.Use(logger.Middleware(log))

	h.Register(e, jwtUtil)

	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		log.Error("Failed to close event publisher", zap.Error(err))
	}
	if err := st.Close(shutdownCtx); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}
}
