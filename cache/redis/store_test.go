package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/cache"
	redisstore "github.com/durableflow/engine/cache/redis"
)

func newTestStore(t *testing.T) *redisstore.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := redisstore.New(redisstore.Options{Redis: client})
	require.NoError(t, err)
	return s
}

func TestStoreGetMissReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreSetThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &cache.Entry{
		Key:       "task-a:deadbeef",
		Inputs:    map[string]any{"x": float64(1)},
		Output:    map[string]any{"y": float64(2)},
		Timestamp: time.Unix(500, 0).UTC(),
	}
	require.NoError(t, s.Set(ctx, e))

	got, err := s.Get(ctx, "task-a:deadbeef")
	require.NoError(t, err)
	require.Equal(t, e.Key, got.Key)
	require.Equal(t, float64(2), got.Output.(map[string]any)["y"])
}

func TestStoreInvalidateRemovesEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, &cache.Entry{Key: "task-a:1"}))
	require.NoError(t, s.Invalidate(ctx, "task-a:1"))

	_, err := s.Get(ctx, "task-a:1")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestStoreSetRejectsEmptyKey(t *testing.T) {
	s := newTestStore(t)
	err := s.Set(context.Background(), &cache.Entry{})
	require.Error(t, err)
}
