// Package main runs the token ledger server:
// - JSON-RPC 2.0 invocation endpoint at /rpc
// - websocket event stream at /events, archive queries at /history
// - /health and Prometheus /metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"ft-ledger/internal/config"
	"ft-ledger/internal/domain"
	"ft-ledger/internal/events"
	"ft-ledger/internal/host"
	"ft-ledger/internal/ledger"
	"ft-ledger/internal/logging"
	"ft-ledger/internal/observability"
	"ft-ledger/internal/rpc"
	"ft-ledger/internal/storage"
	chstore "ft-ledger/internal/storage/clickhouse"
	"ft-ledger/internal/storage/memory"
	"ft-ledger/internal/storage/migrations"
	pgstore "ft-ledger/internal/storage/postgres"
	redisstore "ft-ledger/internal/storage/redis"
	"ft-ledger/internal/token"
)

func main() {
	// Load .env file if exists
	config.LoadEnvFile(".env")

	configPath := flag.String("config", os.Getenv("FT_CONFIG"), "Path to YAML config file")
	listenAddr := flag.String("listen-addr", "", "HTTP listen address (overrides config)")
	storageBackend := flag.String("storage", "", "Ledger storage backend: memory, postgres, redis (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory ledger and archive")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *storageBackend != "" {
		cfg.Storage.Backend = *storageBackend
	}
	if *useMemory {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Archive.Backend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config:\n%v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, cfg, logger)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TraceSample))),
	)
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	store, closeStore, err := createStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	archive, closeArchive, err := createArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeArchive()

	hub := events.NewHub(logger.Named("stream"), nil)
	defer hub.Close()

	notifiers := []events.Notifier{
		events.NewLogNotifier(logger.Named("events")),
		hub,
	}
	if archive != nil {
		notifiers = append(notifiers, events.NewArchiveNotifier(archive, logger.Named("archive")))
	}
	if cfg.AMQP.URL != "" {
		conn, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer conn.Close()
		notifiers = append(notifiers, events.NewAMQPNotifier(conn.Channel(), cfg.AMQP.Exchange, logger.Named("amqp")))
	}

	l, err := openLedger(ctx, store, logger)
	if err != nil {
		return err
	}
	tok := token.New(
		l,
		cfg.Metadata(),
		events.Multi(notifiers...),
		token.WithLogger(logger.Named("token")),
	)
	rt := host.NewRuntime(tok,
		host.WithLogger(logger.Named("host")),
		host.WithTracer(tp.Tracer("ft-ledger/host")),
	)

	if err := autoInitialize(ctx, rt, cfg, logger); err != nil {
		return err
	}

	opts := []rpc.ServerOption{
		rpc.WithServerLogger(logger.Named("rpc")),
		rpc.WithEventStream(hub),
	}
	if archive != nil {
		opts = append(opts, rpc.WithArchive(archive))
	}
	if cfg.MetricsAddr == "" {
		opts = append(opts, rpc.WithMetrics(observability.Handler()))
	} else {
		go startMetricsServer(ctx, cfg.MetricsAddr, logger)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           rpc.NewServer(rt, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("addr", cfg.ListenAddr),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("archive", cfg.Archive.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// Close stream subscribers first; hijacked connections are not tracked by Shutdown.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return ctx.Err()
}

// createStore creates the ledger key-value store.
func createStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN, pgstore.WithMaxConns(cfg.Storage.MaxConns))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if cfg.Storage.Migrate {
			if err := migrations.RunPostgres(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
			logger.Info("postgres migrations applied")
		}
		return pgstore.NewStore(pool), pool.Close, nil

	case config.BackendRedis:
		client, err := redisstore.NewClient(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return redisstore.NewStore(client, cfg.Storage.RedisPrefix), func() { client.Close() }, nil

	default:
		return memory.NewStore(), func() {}, nil
	}
}

// createArchive creates the event archive. Returns a nil store when archiving is off.
func createArchive(ctx context.Context, cfg *config.Config) (storage.EventStore, func(), error) {
	switch cfg.Archive.Backend {
	case config.BackendClickhouse:
		conn, err := chstore.NewConn(ctx, cfg.Archive.ClickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return chstore.NewEventStore(conn), func() { conn.Close() }, nil

	case config.BackendMemory:
		return memory.NewEventStore(), func() {}, nil

	default:
		return nil, func() {}, nil
	}
}

// openLedger wraps store and reads its state, failing early on an unreadable
// or corrupt store.
func openLedger(ctx context.Context, store storage.Store, logger *zap.Logger) (*ledger.Ledger, error) {
	l := ledger.New(store, ledger.WithLogger(logger.Named("ledger")))

	initialized, err := l.Initialized(ctx)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	nonce, err := l.Nonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	logger.Info("ledger opened",
		zap.Bool("initialized", initialized),
		zap.Uint64("nonce", nonce),
	)
	return l, nil
}

// autoInitialize mints the configured supply on first start.
func autoInitialize(ctx context.Context, rt *host.Runtime, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Token.Owner == "" {
		return nil
	}

	args, err := json.Marshal(host.InitializeArgs{
		OwnerID:     domain.AccountID(cfg.Token.Owner),
		TotalSupply: cfg.Token.InitialSupply,
	})
	if err != nil {
		return fmt.Errorf("auto-initialize: %w", err)
	}
	_, err = rt.Invoke(ctx, host.Invocation{
		Method: "initialize",
		Caller: domain.AccountID(cfg.Token.Owner),
		Args:   args,
	})
	if errors.Is(err, domain.ErrAlreadyInitialized) {
		logger.Info("token already initialized, skipping auto-initialization")
		return nil
	}
	if err != nil {
		return fmt.Errorf("auto-initialize: %w", err)
	}
	return nil
}

// startMetricsServer serves /metrics on a dedicated address.
func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("starting metrics server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", zap.Error(err))
	}
}
