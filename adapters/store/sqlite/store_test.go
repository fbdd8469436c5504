package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/storefront/ports"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.FindByAddress(ctx, "0xabc")
	require.ErrorIs(t, err, ports.ErrNotFound)

	now := time.Date(2024, 5, 1, 12, 0, 0, 123000000, time.UTC)
	created, err := s.CreateIdentity(ctx, "0xabc", now)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	found, err := s.FindByAddress(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, "0xabc", found.Address)
	require.True(t, now.Equal(found.LastLogin))
	require.True(t, now.Equal(found.CreatedAt))
}

func TestCreateDuplicateAddress(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateIdentity(ctx, "0xabc", time.Now())
	require.NoError(t, err)

	_, err = s.CreateIdentity(ctx, "0xabc", time.Now())
	require.ErrorIs(t, err, ports.ErrAlreadyExists)
}

func TestUpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	created, err := s.CreateIdentity(ctx, "0xabc", first)
	require.NoError(t, err)

	second := first.Add(24 * time.Hour)
	require.NoError(t, s.UpdateLastLogin(ctx, created.ID, second))

	found, err := s.FindByAddress(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, second.Equal(found.LastLogin))
	require.True(t, first.Equal(found.CreatedAt))

	require.ErrorIs(t, s.UpdateLastLogin(ctx, "missing", second), ports.ErrNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}
