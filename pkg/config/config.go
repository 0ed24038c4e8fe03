package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// DBConfig holds relational database configuration
type DBConfig struct {
	Driver          string
	URL             string
	FallbackURL     string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string.
// DATABASE_URL wins over the discrete DB_* settings.
func (c *DBConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MongoConfig holds document database configuration
type MongoConfig struct {
	URI         string
	FallbackURI string
	Database    string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	RequestTimeout time.Duration
}

// IsProduction reports whether the service runs with production guards on
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// AdminConfig holds the default admin created by bootstrap
type AdminConfig struct {
	Email    string
	Password string
}

// PaymentConfig holds payment provider configuration
type PaymentConfig struct {
	StripeSecretKey string
	Currency        string
}

// AIConfig holds the language-model provider configuration
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// SiteConfig holds public site settings
type SiteConfig struct {
	BaseURL string
}

// KafkaConfig holds order event publishing configuration
type KafkaConfig struct {
	Brokers    string
	OrderTopic string
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Mongo       MongoConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Admin       AdminConfig
	Payment     PaymentConfig
	AI          AIConfig
	Site        SiteConfig
	Kafka       KafkaConfig
}

// Load loads configuration from .env file and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: getEnv("SERVICE_NAME", "storefront-service"),
		DB: DBConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			URL:             getEnv("DATABASE_URL", ""),
			FallbackURL:     getEnv("DATABASE_FALLBACK_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "storefront"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Mongo: MongoConfig{
			URI:         getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			FallbackURI: getEnv("MONGODB_FALLBACK_URI", "mongodb://127.0.0.1:27017"),
			Database:    getEnv("MONGODB_DATABASE", "ecommerce"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("APP_ENV", "development"),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "storefrontsecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Admin: AdminConfig{
			Email:    strings.ToLower(getEnv("ADMIN_EMAIL", "admin@craftmemories.com")),
			Password: getEnv("ADMIN_PASSWORD", "admin123"),
		},
		Payment: PaymentConfig{
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:        strings.ToLower(getEnv("PAYMENT_CURRENCY", "pkr")),
		},
		AI: AIConfig{
			APIKey:  getEnv("AI_API_KEY", getEnv("DIGITALOCEAN_AI_API_KEY", "")),
			BaseURL: getEnv("AI_BASE_URL", "https://api.sambanova.ai/v1"),
			Model:   getEnv("AI_MODEL", "Meta-Llama-3.1-8B-Instruct"),
		},
		Site: SiteConfig{
			BaseURL: strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnv("KAFKA_BROKERS", ""),
			OrderTopic: getEnv("KAFKA_ORDER_TOPIC", "storefront.orders"),
		},
	}

	switch config.DB.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.DB.Driver)
	}

	return config, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_driver", c.DB.Driver),
		zap.String("db_host", c.DB.Host),
		zap.String("db_name", c.DB.DBName),
		zap.String("mongo_database", c.Mongo.Database),
		zap.String("server_port", c.Server.Port),
		zap.Bool("stripe_configured", c.Payment.StripeSecretKey != ""),
		zap.Bool("ai_configured", c.AI.APIKey != ""),
		zap.Bool("kafka_enabled", c.Kafka.Brokers != ""),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
