// Package config loads cmd/durableflowd's process configuration from
// environment variables, with functional-option overrides for tests and
// embedders that construct a durableflow host programmatically.
//
// Grounded on the teacher's generated cmd/assistant/main.go, which reads
// its settings from flag.String/flag.Bool with defaults baked in; this
// package applies the same "flat set of named settings with defaults"
// shape to environment variables instead of flags, since a long-running
// durableflow host is conventionally configured the 12-factor way rather
// than via a one-shot CLI invocation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend names the persistence or execution backend a store-backed
// component uses.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendMongo  Backend = "mongo"
	BackendRedis  Backend = "redis"
)

// EngineBackend names the workflow execution backend.
type EngineBackend string

const (
	EngineMemory   EngineBackend = "memory"
	EngineTemporal EngineBackend = "temporal"
)

// Config is cmd/durableflowd's complete process configuration.
type Config struct {
	// RunLogBackend, CheckpointBackend, and CacheBackend select the store
	// adapter for the event log, checkpoint store, and idempotent task
	// cache respectively (C1/I3, C2).
	RunLogBackend     Backend
	CheckpointBackend Backend
	CacheBackend      Backend

	// MongoURI and MongoDatabase configure the runlog/mongo event log
	// store. The checkpoint store and the cache have no Mongo adapter.
	MongoURI      string
	MongoDatabase string

	// RedisAddr and RedisDB configure any store backed by checkpoint's
	// Redis adapter or cache/redis.
	RedisAddr string
	RedisDB   int

	// Engine selects the workflow execution backend (C10's dependency).
	Engine EngineBackend

	// TemporalHostPort and TemporalNamespace configure the Temporal
	// adapter when Engine is EngineTemporal.
	TemporalHostPort  string
	TemporalNamespace string
	TemporalTaskQueue string

	// HTTPAdminAddr is the bind address for the host process's own
	// administrative HTTP surface (a /healthz endpoint), distinct from any
	// Listen task's declared HTTP-schema endpoints.
	HTTPAdminAddr string

	// ShutdownGrace bounds how long the host waits for the admin and
	// HTTP-schema listener servers to finish in-flight requests during
	// shutdown. The process context is cancelled before that wait begins.
	ShutdownGrace time.Duration
}

// Option customizes a Config after environment defaults are applied.
type Option func(*Config)

// WithEngine overrides the workflow execution backend.
func WithEngine(backend EngineBackend) Option {
	return func(c *Config) { c.Engine = backend }
}

// WithStores overrides all three store backends at once, the common case
// for tests that want everything in memory regardless of the process
// environment.
func WithStores(backend Backend) Option {
	return func(c *Config) {
		c.RunLogBackend = backend
		c.CheckpointBackend = backend
		c.CacheBackend = backend
	}
}

// Load reads configuration from the process environment, applying
// defaults for anything unset, then applies opts in order.
func Load(opts ...Option) (Config, error) {
	c := Config{
		RunLogBackend:     Backend(getenv("DURABLEFLOW_RUNLOG_BACKEND", string(BackendMemory))),
		CheckpointBackend: Backend(getenv("DURABLEFLOW_CHECKPOINT_BACKEND", string(BackendMemory))),
		CacheBackend:      Backend(getenv("DURABLEFLOW_CACHE_BACKEND", string(BackendMemory))),

		MongoURI:      getenv("DURABLEFLOW_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("DURABLEFLOW_MONGO_DATABASE", "durableflow"),

		RedisAddr: getenv("DURABLEFLOW_REDIS_ADDR", "localhost:6379"),
		RedisDB:   0,

		Engine:            EngineBackend(getenv("DURABLEFLOW_ENGINE", string(EngineMemory))),
		TemporalHostPort:  getenv("DURABLEFLOW_TEMPORAL_HOST_PORT", "localhost:7233"),
		TemporalNamespace: getenv("DURABLEFLOW_TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue: getenv("DURABLEFLOW_TEMPORAL_TASK_QUEUE", "durableflow"),

		HTTPAdminAddr: getenv("DURABLEFLOW_ADMIN_ADDR", ":8080"),
		ShutdownGrace: 15 * time.Second,
	}

	if v := os.Getenv("DURABLEFLOW_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: DURABLEFLOW_REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}
	if v := os.Getenv("DURABLEFLOW_SHUTDOWN_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: DURABLEFLOW_SHUTDOWN_GRACE: %w", err)
		}
		c.ShutdownGrace = d
	}

	for _, opt := range opts {
		opt(&c)
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.Engine {
	case EngineMemory, EngineTemporal:
	default:
		return fmt.Errorf("config: unknown engine backend %q", c.Engine)
	}
	for field, b := range map[string]Backend{
		"runlog":     c.RunLogBackend,
		"checkpoint": c.CheckpointBackend,
		"cache":      c.CacheBackend,
	} {
		switch b {
		case BackendMemory, BackendMongo, BackendRedis:
		default:
			return fmt.Errorf("config: unknown %s backend %q", field, b)
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
