package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string
	Environment string
	ServiceName string
}

var log *zap.Logger

// InitLogger initializes the global logger with configuration
func InitLogger(config *LogConfig) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(config.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if config.Environment == "production" {
		// Production: structured JSON logs
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		// Development: colourful, human-readable logs
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	built, err := zapConfig.Build(zap.Fields(
		zap.String("service", config.ServiceName),
		zap.String("environment", config.Environment),
	))
	if err != nil {
		return err
	}

	log = built
	zap.ReplaceGlobals(log)
	return nil
}

// SetLogger replaces the global logger, mostly useful in tests
func SetLogger(l *zap.Logger) {
	log = l
}

// GetLogger returns the global logger instance.
// Before InitLogger runs it returns a no-op logger.
func GetLogger() *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// Middleware returns an Echo middleware that logs HTTP requests
func Middleware(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			ctxLogger, ok := c.Get(EchoKey).(*zap.Logger)
			if !ok {
				ctxLogger = base
			}

			err := next(c)
			if err != nil {
				// Let echo write the error response so the logged status is final
				c.Error(err)
			}

			fields := []zapcore.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
				zap.String("user_agent", c.Request().UserAgent()),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
				ctxLogger.Error("HTTP request failed", fields...)
			} else {
				ctxLogger.Info("HTTP request completed", fields...)
			}

			return nil
		}
	}
}
