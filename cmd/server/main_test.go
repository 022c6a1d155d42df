package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carmarket/backend/internal/config"
	"github.com/carmarket/backend/internal/models"
	"github.com/carmarket/backend/internal/storage"
)

func TestOpenStoreSQLite(t *testing.T) {
	cfg := &config.Config{StoreDriver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "cars.db")}

	store, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()
	require.IsType(t, &storage.GormStore{}, store)

	u := &models.User{Name: "Ali", Email: "ali@example.com", PasswordHash: "hash"}
	require.NoError(t, store.CreateUser(context.Background(), u))
	assert.NotZero(t, u.ID)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), &config.Config{StoreDriver: "cassandra"})
	assert.EqualError(t, err, `unknown store driver "cassandra"`)
}

func TestAuthLimiterIsClosable(t *testing.T) {
	limiter, err := authLimiter(&config.Config{AuthRateLimitPerMinute: 5})
	require.NoError(t, err)
	_, closable := limiter.(io.Closer)
	assert.False(t, closable)

	srv := miniredis.RunT(t)
	limiter, err = authLimiter(&config.Config{RedisAddr: srv.Addr(), AuthRateLimitPerMinute: 5})
	require.NoError(t, err)
	assert.True(t, limiter.Allow("10.0.0.1"))

	closer, ok := limiter.(io.Closer)
	require.True(t, ok)
	require.NoError(t, closer.Close())
	assert.False(t, limiter.Allow("10.0.0.1"))
}
