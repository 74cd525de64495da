package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/poolfund-backend/internal/bootstrap"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox"
	"github.com/angelmondragon/poolfund-backend/pkg/outbox/registry"
	"github.com/angelmondragon/poolfund-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

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
	cfg := rt.Config
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, rt.Logger)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			rt.Logger.Error(ctx, "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	conn := rt.DB.DB()
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        rt.Logger,
		DB:            rt.DB,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(conn),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(conn),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	rt.ServeMetrics(ctx)
	rt.Logger.Info(rt.Logger.WithField(ctx, "event_types", eventRegistry.EventTypes()), "starting outbox publisher")
	return service.Run(ctx)
}
