package store

import (
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisNonceStore(t *testing.T) {
	if os.Getenv("DONT_USE_NETWORK") != "" {
		t.Skip("test requires network egress")
		return
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	redisC, err := testcontainers.Run(
		t.Context(), "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, redisC)
	require.NoError(t, err)

	endpoint, err := redisC.PortEndpoint(t.Context(), "6379/tcp", "redis")
	require.NoError(t, err)

	opts, err := redis.ParseURL(endpoint)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisNonceStore(client)

	ok, err := s.Consume(t.Context(), "nonce-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Consume(t.Context(), "nonce-1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ttl, err := client.TTL(t.Context(), "storefront:nonce:nonce-1").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, s.Release(t.Context(), "nonce-1"))
	ok, err = s.Consume(t.Context(), "nonce-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
