package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowLimiter(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewFixedWindowLimiter(srv.Addr(), "", "test:ratelimit", 2, time.Minute)
	require.NoError(t, err)
	defer limiter.Close()

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := NewFixedWindowLimiter(srv.Addr(), "", "test:ratelimit", 5, time.Minute)
	require.NoError(t, err)
	defer limiter.Close()

	srv.Close()
	assert.False(t, limiter.Allow("10.0.0.1"))
}

func TestFixedWindowLimiterValidation(t *testing.T) {
	_, err := NewFixedWindowLimiter("", "", "", 1, time.Second)
	assert.Error(t, err)

	_, err = NewFixedWindowLimiter("localhost:6379", "", "", 0, time.Second)
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("client"))
	}
	assert.False(t, limiter.Allow("client"))
	assert.True(t, limiter.Allow("other"))
}
