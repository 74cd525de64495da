package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/poolfund-backend/internal/bootstrap"
	"github.com/angelmondragon/poolfund-backend/internal/cron"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox"
)

const serviceName = "cron-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, serviceName)
	if err == nil {
		ctx = rt.Context(ctx)
		err = run(ctx, rt)
	}
	bootstrap.Finish(ctx, serviceName, rt, err)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	logg, cfg := rt.Logger, rt.Config
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	engine, err := rt.Engine(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), 0)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	expiryJob, err := cron.NewVotingExpiryJob(cron.VotingExpiryJobParams{Logger: logg, Sweeper: engine.Payouts})
	if err != nil {
		return fmt.Errorf("voting expiry job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          rt.DB,
		Repository:  outbox.NewRepository(rt.DB.DB()),
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	registry, err := cron.NewRegistry(expiryJob, retentionJob)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Spec:     cfg.Voting.SweepCronSpec,
	})
	if err != nil {
		return err
	}

	rt.ServeMetrics(ctx)
	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "starting cron worker")
	return service.Run(ctx)
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return serviceName + ":" + env
}
