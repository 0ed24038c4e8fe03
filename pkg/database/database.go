// Package database opens the configured storage backend.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront-service/internal/store"
	"storefront-service/internal/store/gormstore"
	"storefront-service/internal/store/memstore"
	"storefront-service/internal/store/mongostore"
	"storefront-service/pkg/config"
)

const connectTimeout = 10 * time.Second

// Open connects to the backend named by cfg.DB.Driver, trying the primary
// address first and then the fallback. Outside production an unreachable
// database degrades to the in-memory store so the service still starts.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, string, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.DB.Driver {
	case config.DriverMemory:
		return memstore.New(), config.DriverMemory, nil
	case config.DriverMongo:
		st, err = openMongo(ctx, &cfg.Mongo, log)
	default:
		st, err = openPostgres(ctx, &cfg.DB, log)
	}
	if err == nil {
		return st, cfg.DB.Driver, nil
	}
	if cfg.Server.IsProduction() {
		return nil, "", err
	}
	log.Warn("Database unavailable, falling back to in-memory store",
		zap.String("driver", cfg.DB.Driver),
		zap.Error(err))
	return memstore.New(), config.DriverMemory, nil
}

func openPostgres(ctx context.Context, cfg *config.DBConfig, log *zap.Logger) (*gormstore.Store, error) {
	dsns := []string{cfg.GetDSN()}
	if cfg.FallbackURL != "" {
		dsns = append(dsns, cfg.FallbackURL)
	}

	var errs []error
	for i, dsn := range dsns {
		db, err := InitDB(ctx, dsn, cfg)
		if err != nil {
			log.Warn("Failed to connect to PostgreSQL", zap.Int("attempt", i+1), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		st := gormstore.New(db)
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close(ctx)
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		log.Info("Database connected successfully", zap.String("driver", config.DriverPostgres))
		return st, nil
	}
	return nil, errors.Join(errs...)
}

// InitDB opens a gorm connection with the configured pool settings
func InitDB(ctx context.Context, dsn string, cfg *config.DBConfig) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger:         logger.Default.LogMode(cfg.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func openMongo(ctx context.Context, cfg *config.MongoConfig, log *zap.Logger) (*mongostore.Store, error) {
	uris := []string{cfg.URI}
	if cfg.FallbackURI != "" && cfg.FallbackURI != cfg.URI {
		uris = append(uris, cfg.FallbackURI)
	}

	var errs []error
	for i, uri := range uris {
		client, err := ConnectMongo(ctx, uri)
		if err != nil {
			log.Warn("Failed to connect to MongoDB", zap.Int("attempt", i+1), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		st := mongostore.New(client, cfg.Database, log)
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close(ctx)
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		log.Info("Database connected successfully",
			zap.String("driver", config.DriverMongo),
			zap.String("database", cfg.Database))
		return st, nil
	}
	return nil, errors.Join(errs...)
}

// ConnectMongo dials and pings a MongoDB deployment
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(connectTimeout))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
