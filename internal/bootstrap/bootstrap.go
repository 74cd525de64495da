// Package bootstrap builds the process state shared by every binary: config,
// logger, database, redis and the payout engine.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/poolfund-backend/internal/authz"
	"github.com/angelmondragon/poolfund-backend/internal/ledger"
	"github.com/angelmondragon/poolfund-backend/internal/payouts"
	"github.com/angelmondragon/poolfund-backend/internal/pools"
	"github.com/angelmondragon/poolfund-backend/internal/votes"
	"github.com/angelmondragon/poolfund-backend/internal/votingsettings"
	"github.com/angelmondragon/poolfund-backend/pkg/config"
	"github.com/angelmondragon/poolfund-backend/pkg/db"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
	"github.com/angelmondragon/poolfund-backend/pkg/migrate"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox"
	"github.com/angelmondragon/poolfund-backend/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

// Runtime is what a binary has once it is configured and connected.
type Runtime struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Start loads .env and the environment, builds the service logger, connects
// to the database and applies boot migrations. Close must be called even when
// Start fails part-way; it releases whatever was opened.
func Start(ctx context.Context, service string) (*Runtime, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = service

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	rt.DB, err = db.New(ctx, cfg.DB, rt.Logger)
	if err != nil {
		return rt, fmt.Errorf("database: %w", err)
	}
	rt.onClose("database", rt.DB.Close)
	if err := migrate.RunOnBoot(ctx, cfg, rt.Logger, rt.DB); err != nil {
		return rt, fmt.Errorf("boot migrations: %w", err)
	}
	return rt, nil
}

// Context returns ctx carrying the fields every log line of this process shares.
func (rt *Runtime) Context(ctx context.Context) context.Context {
	return rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Config.Service.Kind,
	})
}

// Redis connects to redis and closes it with the runtime.
func (rt *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rt.onClose("redis", client.Close)
	return client, nil
}

// Engine is the payout voting and settlement engine plus the settings service
// it reads from.
type Engine struct {
	Payouts  payouts.Service
	Settings votingsettings.Service
}

// Engine wires repositories, ledgers and the outbox into a payout service.
func (rt *Runtime) Engine(reg prometheus.Registerer) (*Engine, error) {
	conn := rt.DB.DB()
	poolRepo := pools.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), rt.Logger)
	policy := authz.NewPolicy()

	settings, err := votingsettings.NewService(votingsettings.ServiceParams{
		Repo:       votingsettings.NewRepository(conn),
		Pools:      poolRepo,
		Tx:         rt.DB,
		Outbox:     emitter,
		Authorizer: policy,
		Logger:     rt.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("voting settings: %w", err)
	}
	voteLedger, err := votes.NewLedger(votes.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("vote ledger: %w", err)
	}
	balances, err := ledger.NewService(ledger.NewRepository(conn), poolRepo)
	if err != nil {
		return nil, fmt.Errorf("balance ledger: %w", err)
	}
	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Config:     rt.Config.Voting,
		Tx:         rt.DB,
		Repo:       payouts.NewRepository(conn),
		Pools:      poolRepo,
		Settings:   settings,
		Votes:      voteLedger,
		Ledger:     balances,
		Outbox:     emitter,
		Authorizer: policy,
		Metrics:    metrics.NewPayoutMetrics(reg),
		Logger:     rt.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("payouts: %w", err)
	}
	return &Engine{Payouts: payoutService, Settings: settings}, nil
}

// ServeMetrics exposes the default prometheus registry on the configured
// metrics address until ctx is done. It does nothing when no address is set.
func (rt *Runtime) ServeMetrics(ctx context.Context) {
	addr := rt.Config.App.MetricsAddr
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		rt.Logger.Info(rt.Logger.WithField(ctx, "addr", addr), "metrics listener started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
	rt.onClose("metrics listener", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// Close releases resources in the reverse order they were opened.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var err error
	for _, c := range slices.Backward(rt.closers) {
		if closeErr := c.close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", c.name, closeErr))
		}
	}
	rt.closers = nil
	return err
}

func (rt *Runtime) onClose(name string, fn func() error) {
	rt.closers = append(rt.closers, namedCloser{name: name, close: fn})
}

// Finish closes rt and exits non-zero when err or the close failed. A
// canceled context is a clean stop.
func Finish(ctx context.Context, service string, rt *Runtime, err error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if rt != nil && rt.Logger != nil {
		logg = rt.Logger
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err = multierr.Append(err, rt.Close()); err != nil {
		logg.Error(ctx, service+" stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, service+" stopped cleanly")
}
