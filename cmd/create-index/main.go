// Command create-index creates the storage indexes for the configured backend,
// most importantly the unique product slug index.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront-service/internal/store/gormstore"
	"storefront-service/internal/store/mongostore"
	"storefront-service/pkg/config"
	"storefront-service/pkg/database"
	"storefront-service/pkg/logger"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       appConfig.Log.Level,
		Environment: appConfig.Server.Env,
		ServiceName: "create-index",
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch appConfig.DB.Driver {
	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, appConfig.Mongo.URI)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		st := mongostore.New(client, appConfig.Mongo.Database, log)
		defer st.Close(context.Background())

		if err := st.EnsureIndexes(ctx); err != nil {
			log.Fatal("Failed to create indexes", zap.Error(err))
		}
	case config.DriverPostgres:
		db, err := database.InitDB(ctx, appConfig.DB.GetDSN(), &appConfig.DB)
		if err != nil {
			log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		st := gormstore.New(db)
		defer st.Close(context.Background())

		if err := st.Migrate(ctx); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
	default:
		log.Info("Nothing to index for driver", zap.String("driver", appConfig.DB.Driver))
		return
	}

	log.Info("Indexes created", zap.String("driver", appConfig.DB.Driver))
}
