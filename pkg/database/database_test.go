package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-service/internal/store/memstore"
	"storefront-service/pkg/config"
)

func TestOpenMemory(t *testing.T) {
	cfg := &config.Config{DB: config.DBConfig{Driver: config.DriverMemory}}

	st, backend, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, backend)
	assert.IsType(t, &memstore.Store{}, st)
}

func TestOpenFallsBackOutsideProduction(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cfg := &config.Config{
		DB:     config.DBConfig{Driver: config.DriverMongo},
		Mongo:  config.MongoConfig{URI: "mongodb://127.0.0.1:1", Database: "test"},
		Server: config.ServerConfig{Env: "development"},
	}

	st, backend, err := Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, backend)
	assert.NotNil(t, st)
}

func TestOpenFailsInProduction(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cfg := &config.Config{
		DB:     config.DBConfig{Driver: config.DriverMongo},
		Mongo:  config.MongoConfig{URI: "mongodb://127.0.0.1:1", Database: "test"},
		Server: config.ServerConfig{Env: "production"},
	}

	_, _, err := Open(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}
