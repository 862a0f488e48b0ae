package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendMemory, c.RunLogBackend)
	require.Equal(t, BackendMemory, c.CheckpointBackend)
	require.Equal(t, BackendMemory, c.CacheBackend)
	require.Equal(t, EngineMemory, c.Engine)
	require.Equal(t, 15*time.Second, c.ShutdownGrace)
	require.Equal(t, ":8080", c.HTTPAdminAddr)
}

func TestLoadRejectsUnknownEngine(t *testing.T) {
	t.Setenv("DURABLEFLOW_ENGINE", "quantum")
	_, err := Load()
	require.ErrorContains(t, err, "unknown engine backend")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DURABLEFLOW_CACHE_BACKEND", "dbase-iv")
	_, err := Load()
	require.ErrorContains(t, err, "unknown cache backend")
}

func TestLoadRejectsMalformedRedisDB(t *testing.T) {
	t.Setenv("DURABLEFLOW_REDIS_DB", "not-a-number")
	_, err := Load()
	require.ErrorContains(t, err, "DURABLEFLOW_REDIS_DB")
}

func TestLoadRejectsMalformedShutdownGrace(t *testing.T) {
	t.Setenv("DURABLEFLOW_SHUTDOWN_GRACE", "soon")
	_, err := Load()
	require.ErrorContains(t, err, "DURABLEFLOW_SHUTDOWN_GRACE")
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("DURABLEFLOW_REDIS_DB", "3")
	t.Setenv("DURABLEFLOW_SHUTDOWN_GRACE", "30s")
	t.Setenv("DURABLEFLOW_ENGINE", "temporal")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, c.RedisDB)
	require.Equal(t, 30*time.Second, c.ShutdownGrace)
	require.Equal(t, EngineTemporal, c.Engine)
}

func TestLoadOptionsOverrideEnvironment(t *testing.T) {
	t.Setenv("DURABLEFLOW_ENGINE", "temporal")

	c, err := Load(WithEngine(EngineMemory), WithStores(BackendRedis))
	require.NoError(t, err)
	require.Equal(t, EngineMemory, c.Engine)
	require.Equal(t, BackendRedis, c.RunLogBackend)
	require.Equal(t, BackendRedis, c.CheckpointBackend)
	require.Equal(t, BackendRedis, c.CacheBackend)
}
