package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/durableflow/engine/checkpoint"
	redisstore "github.com/durableflow/engine/checkpoint/redis"
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

func TestStoreSaveThenLoadRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp := &checkpoint.Checkpoint{
		InstanceID:  "inst-1",
		CurrentTask: "step-2",
		Data:        map[string]any{"count": float64(3)},
		Timestamp:   time.Unix(1000, 0).UTC(),
	}
	require.NoError(t, s.Save(ctx, cp))

	got, ok, err := s.Load(ctx, "inst-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "step-2", got.CurrentTask)
	require.Equal(t, float64(3), got.Data["count"])
}

func TestStoreLoadMissingReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Load(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreSaveOverwritesPriorCheckpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &checkpoint.Checkpoint{InstanceID: "inst-1", CurrentTask: "step-1"}))
	require.NoError(t, s.Save(ctx, &checkpoint.Checkpoint{InstanceID: "inst-1", CurrentTask: "step-2"}))

	got, ok, err := s.Load(ctx, "inst-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "step-2", got.CurrentTask)
}

func TestStoreSaveRejectsMissingInstanceID(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(context.Background(), &checkpoint.Checkpoint{})
	require.Error(t, err)
}
