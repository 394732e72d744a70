package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bank-transfers/internal/config"
	"bank-transfers/internal/directory"
	"bank-transfers/internal/httpapi"
	"bank-transfers/internal/notify"
	"bank-transfers/internal/store"
	"bank-transfers/internal/telemetry"
	"bank-transfers/internal/transfer"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const serviceName = "bank-transfers"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run owns every resource of the process so that its deferred closes run on
// both clean shutdown and failure.
func run() error {
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.InitLogger(serviceName, cfg.Telemetry.LogLevel)
	logger.Info("startup begin", "addr", cfg.HTTP.Addr, "migrate", cfg.DB.Migrate, "max_conns", cfg.DB.MaxConns)

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Environment)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startCancel()

	pool, err := openPool(startCtx, cfg.DB)
	if err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	defer pool.Close()

	if cfg.DB.Migrate {
		if err := store.Migrate(startCtx, pool); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		logger.Info("migrations complete")
	}

	st := store.New(pool)
	opts := []transfer.Option{
		transfer.WithLimit(cfg.Transfer.Limit),
		transfer.WithLogger(logger),
	}
	if cfg.NATS.URL != "" {
		pub, err := notify.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			// Publishing is best effort; transfers do not depend on it.
			logger.Warn("nats unavailable, outcome publishing disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			defer pub.Close()
			opts = append(opts, transfer.WithPublisher(pub))
		}
	}

	engine := transfer.New(st, st, opts...)
	h := httpapi.NewHandlers(directory.New(st), engine, st, cfg.HTTP.RequestTimeout, logger)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.Router(h, cfg.HTTP.MaxInflight),

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	logger.Info("listening",
		"addr", cfg.HTTP.Addr,
		"limit", cfg.Transfer.Limit.StringFixed(2),
		"ready_in", time.Since(start).Truncate(time.Millisecond).String(),
	)
	return serve(srv, quit, logger)
}

// serve runs srv until it fails or a signal arrives on quit, then shuts it
// down gracefully. A listener error is returned instead of exiting.
func serve(srv *http.Server, quit <-chan os.Signal, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func openPool(ctx context.Context, db config.DBConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(db.DSN)
	if err != nil {
		return nil, err
	}
	pc.MaxConns = int32(db.MaxConns)
	pc.MinConns = 1
	pc.HealthCheckPeriod = 10 * time.Second
	pc.MaxConnLifetime = 30 * time.Minute
	pc.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
