package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/poolfund-backend/api/controllers"
	"github.com/angelmondragon/poolfund-backend/api/routes"
	"github.com/angelmondragon/poolfund-backend/internal/bootstrap"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
)

const (
	serviceName       = "api"
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

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
	cfg, logg := rt.Config, rt.Logger
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	engine, err := rt.Engine(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	readiness := map[string]controllers.Pinger{"db": rt.DB, "redis": redisClient}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(cfg, logg, readiness, redisClient, engine.Payouts, engine.Settings,
			metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	ctx = logg.WithField(ctx, "addr", server.Addr)

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logg.Info(shutdownCtx, "draining api server")
	return server.Shutdown(shutdownCtx)
}
