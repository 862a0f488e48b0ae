// Command durableflowd hosts the durable workflow execution engine as a
// long-running process: it wires the configured storage backends, the
// dispatch kernel, the selected execution engine (in-memory or
// Temporal), and the Listen-task transports (HTTP-schema, RPC), then
// blocks until SIGINT/SIGTERM.
//
// Grounded on the teacher's example/cmd/assistant/main.go: an errc error
// channel shared between the signal handler and server goroutines, a
// cancelable root context, and a sync.WaitGroup the main goroutine joins
// before exiting — adapted here from Goa's generated HTTP/gRPC server
// pair to this engine's own component set.
//
// Document registration is out of this binary's scope: the workflow
// document YAML/JSON parser is an explicit non-goal of the engine itself
// (documents arrive as already-decoded workflow.Document values from
// whatever process embeds durableflow.Engine as a library), so main
// registers the fixed set of documents compiled into this binary via
// registerDocuments and leaves loading an external catalog to a
// follow-up command-line flag once that parser exists.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/durableflow/engine/cache"
	cacheinmem "github.com/durableflow/engine/cache/inmem"
	cacheredis "github.com/durableflow/engine/cache/redis"
	"github.com/durableflow/engine/catalog"
	"github.com/durableflow/engine/checkpoint"
	checkpointinmem "github.com/durableflow/engine/checkpoint/inmem"
	checkpointredis "github.com/durableflow/engine/checkpoint/redis"
	"github.com/durableflow/engine/config"
	"github.com/durableflow/engine/dispatch"
	"github.com/durableflow/engine/durableflow"
	"github.com/durableflow/engine/engine"
	engineinmem "github.com/durableflow/engine/engine/inmem"
	enginetemporal "github.com/durableflow/engine/engine/temporal"
	"github.com/durableflow/engine/executor"
	"github.com/durableflow/engine/executor/grpcexec"
	"github.com/durableflow/engine/executor/httpexec"
	"github.com/durableflow/engine/executor/openapiexec"
	"github.com/durableflow/engine/executor/pyexec"
	"github.com/durableflow/engine/executor/shellexec"
	"github.com/durableflow/engine/executor/tsexec"
	"github.com/durableflow/engine/expr/gojq"
	"github.com/durableflow/engine/listener"
	"github.com/durableflow/engine/listener/httpschema"
	"github.com/durableflow/engine/listener/rpc"
	"github.com/durableflow/engine/runlog"
	runloginmem "github.com/durableflow/engine/runlog/inmem"
	runlogmongo "github.com/durableflow/engine/runlog/mongo"
	"github.com/durableflow/engine/telemetry"
	"github.com/durableflow/engine/workflow"
)

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "durableflowd: building logger:", err)
		os.Exit(1)
	}
	defer zl.Sync()
	logger := telemetry.NewZapLogger(zl)

	cfg, err := config.Load()
	if err != nil {
		logger.Error(context.Background(), "durableflowd: loading config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	rl, cp, ch, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "durableflowd: building stores", "error", err)
		cancel()
		os.Exit(1)
	}
	defer cleanup()

	executors := executor.NewRegistry()
	// "http" and "rest" are the same executor: spec §4.4 lists both
	// names for Call's REST protocol, with no behavioral difference.
	httpExec := httpexec.New(http.DefaultClient)
	executors.Register("http", httpExec)
	executors.Register("rest", httpExec)
	executors.Register("openapi", openapiexec.New(http.DefaultClient))
	executors.Register("grpc", grpcexec.New())
	executors.Register("shell", shellexec.New())
	executors.Register("python", pyexec.New())
	executors.Register("typescript", tsexec.New())

	cat := catalog.New()
	lsnr := listener.New()

	d, err := dispatch.New(dispatch.Options{
		Expr:       gojq.New(),
		RunLog:     rl,
		Checkpoint: cp,
		Cache:      ch,
		Executors:  executors,
		Workflows:  cat,
		Listener:   lsnr,
		Logger:     logger,
	})
	if err != nil {
		logger.Error(ctx, "durableflowd: building dispatcher", "error", err)
		cancel()
		os.Exit(1)
	}

	backend, backendCleanup, err := buildEngineBackend(cfg, logger)
	if err != nil {
		logger.Error(ctx, "durableflowd: building engine backend", "error", err)
		cancel()
		os.Exit(1)
	}
	defer backendCleanup()

	flow, err := durableflow.New(backend, d, cat, durableflow.WithLogger(logger))
	if err != nil {
		logger.Error(ctx, "durableflowd: building durableflow engine", "error", err)
		cancel()
		os.Exit(1)
	}

	for _, doc := range registerDocuments() {
		if err := flow.RegisterWorkflow(ctx, doc); err != nil {
			logger.Error(ctx, "durableflowd: registering document", "document", doc.FullName(), "error", err)
			cancel()
			os.Exit(1)
		}
	}

	httpSrv := httpschema.New(lsnr, logger)
	rpcSrv := rpc.New(lsnr, logger)
	if err := registerListenTargets(httpSrv, rpcSrv, cat); err != nil {
		logger.Error(ctx, "durableflowd: registering listen targets", "error", err)
		cancel()
		os.Exit(1)
	}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	adminSrv := startAdminServer(cfg.HTTPAdminAddr, logger, errc, &wg)

	logger.Info(ctx, "durableflowd: started", "engine", cfg.Engine, "admin_addr", cfg.HTTPAdminAddr)
	logger.Info(ctx, "durableflowd: exiting", "reason", <-errc)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	_ = adminSrv.Shutdown(shutdownCtx)
	_ = httpSrv.Shutdown(shutdownCtx)
	rpcSrv.Shutdown()
	wg.Wait()
	logger.Info(context.Background(), "durableflowd: exited")
}

// registerDocuments returns the workflow documents compiled into this
// binary. Replace with a real catalog loader once a document parser
// exists; until then this is the seam an embedding deployment overrides.
func registerDocuments() []workflow.Document {
	return nil
}

// registerListenTargets registers every Listen task target across every
// document in cat with the matching transport server.
func registerListenTargets(httpSrv *httpschema.Server, rpcSrv *rpc.Server, cat *catalog.Registry) error {
	for _, doc := range cat.All() {
		for _, target := range listenTargets(*doc) {
			switch target.Protocol {
			case workflow.ListenHTTPSchema:
				if err := httpSrv.Register(target); err != nil {
					return fmt.Errorf("registering http listen target %+v: %w", target, err)
				}
			case workflow.ListenRPC:
				if err := rpcSrv.Register(target); err != nil {
					return fmt.Errorf("registering rpc listen target %+v: %w", target, err)
				}
			default:
				return fmt.Errorf("unknown listen protocol %q", target.Protocol)
			}
		}
	}
	return nil
}

func buildStores(ctx context.Context, cfg config.Config) (runlog.Store, checkpoint.Store, cache.Store, func(), error) {
	var (
		mongoClient *mongodriver.Client
		redisClient *goredis.Client
		closers     []func()
	)
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	needsMongo := cfg.RunLogBackend == config.BackendMongo || cfg.CheckpointBackend == config.BackendMongo || cfg.CacheBackend == config.BackendMongo
	if needsMongo {
		cli, err := mongodriver.Connect(mongooptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, nil, cleanup, fmt.Errorf("connecting to mongo: %w", err)
		}
		mongoClient = cli
		closers = append(closers, func() { _ = cli.Disconnect(context.Background()) })
	}

	needsRedis := cfg.RunLogBackend == config.BackendRedis || cfg.CheckpointBackend == config.BackendRedis || cfg.CacheBackend == config.BackendRedis
	if needsRedis {
		rc := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		redisClient = rc
		closers = append(closers, func() { _ = rc.Close() })
	}

	var rl runlog.Store
	switch cfg.RunLogBackend {
	case config.BackendMemory:
		rl = runloginmem.New()
	case config.BackendMongo:
		store, err := runlogmongo.New(ctx, runlogmongo.Options{Client: mongoClient, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, nil, nil, cleanup, fmt.Errorf("building mongo run log: %w", err)
		}
		rl = store
	case config.BackendRedis:
		return nil, nil, nil, cleanup, fmt.Errorf("run log backend %q has no adapter: the event log needs ordered, paginated reads that a plain key/value store like Redis does not model well; use memory or mongo", cfg.RunLogBackend)
	}

	var cp checkpoint.Store
	switch cfg.CheckpointBackend {
	case config.BackendMemory:
		cp = checkpointinmem.New()
	case config.BackendRedis:
		store, err := checkpointredis.New(checkpointredis.Options{Redis: redisClient})
		if err != nil {
			return nil, nil, nil, cleanup, fmt.Errorf("building redis checkpoint store: %w", err)
		}
		cp = store
	case config.BackendMongo:
		return nil, nil, nil, cleanup, fmt.Errorf("checkpoint backend %q has no adapter yet", cfg.CheckpointBackend)
	}

	var ch cache.Store
	switch cfg.CacheBackend {
	case config.BackendMemory:
		ch = cacheinmem.New()
	case config.BackendRedis:
		store, err := cacheredis.New(cacheredis.Options{Redis: redisClient})
		if err != nil {
			return nil, nil, nil, cleanup, fmt.Errorf("building redis cache store: %w", err)
		}
		ch = store
	case config.BackendMongo:
		return nil, nil, nil, cleanup, fmt.Errorf("cache backend %q has no adapter yet", cfg.CacheBackend)
	}

	return rl, cp, ch, cleanup, nil
}

func buildEngineBackend(cfg config.Config, logger telemetry.Logger) (engine.Engine, func(), error) {
	switch cfg.Engine {
	case config.EngineMemory:
		return engineinmem.New(), func() {}, nil
	case config.EngineTemporal:
		eng, err := enginetemporal.New(enginetemporal.Options{
			ClientOptions: &client.Options{HostPort: cfg.TemporalHostPort, Namespace: cfg.TemporalNamespace},
			WorkerOptions: enginetemporal.WorkerOptions{TaskQueue: cfg.TemporalTaskQueue},
			Logger:        logger,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("building temporal engine: %w", err)
		}
		return eng, func() { _ = eng.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown engine backend %q", cfg.Engine)
	}
}

func startAdminServer(addr string, logger telemetry.Logger, errc chan<- error, wg *sync.WaitGroup) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- fmt.Errorf("admin server: %w", err)
		}
	}()
	logger.Info(context.Background(), "durableflowd: admin server listening", "addr", addr)
	return srv
}
