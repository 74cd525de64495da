package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/poolfund-backend/api/controllers"
	payoutcontrollers "github.com/angelmondragon/poolfund-backend/api/controllers/payouts"
	settingscontrollers "github.com/angelmondragon/poolfund-backend/api/controllers/votingsettings"
	"github.com/angelmondragon/poolfund-backend/api/middleware"
	"github.com/angelmondragon/poolfund-backend/internal/payouts"
	"github.com/angelmondragon/poolfund-backend/internal/votingsettings"
	"github.com/angelmondragon/poolfund-backend/pkg/config"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
	"github.com/angelmondragon/poolfund-backend/pkg/redis"
)

// Store backs request idempotency and vote throttling. A nil Store disables both.
type Store interface {
	redis.IdempotencyStore
	redis.RateLimiter
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	store Store,
	payoutService payouts.Service,
	settingsService votingsettings.Service,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.AccessLog(logg, httpMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiter          redis.RateLimiter
	)
	if store != nil {
		idempotencyStore = store
		limiter = store
	}
	votePolicy := middleware.RateLimitPolicy{
		Name:   "vote",
		Limit:  cfg.RateLimit.VoteLimit,
		Window: cfg.RateLimit.VoteWindow,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/ping", controllers.PrivatePing())

		// Routes are registered flat inside the group so the idempotency
		// middleware sees the full route pattern.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Get("/pools/{poolId}/payouts", payoutcontrollers.List(payoutService, logg))
			r.Post("/pools/{poolId}/payouts", payoutcontrollers.Create(payoutService, logg))
			r.Get("/pools/{poolId}/payouts/stats", payoutcontrollers.Stats(payoutService, logg))
			r.Post("/pools/{poolId}/payouts/process-expired", payoutcontrollers.ProcessExpired(payoutService, logg))
			r.Get("/pools/{poolId}/eligible-members", payoutcontrollers.EligibleMembers(payoutService, logg))

			r.Get("/pools/{poolId}/voting-settings", settingscontrollers.Get(settingsService, logg))
			r.Put("/pools/{poolId}/voting-settings", settingscontrollers.Update(settingsService, logg))
			r.Post("/pools/{poolId}/voting-settings/toggle", settingscontrollers.Toggle(settingsService, logg))

			r.Get("/payouts/{payoutId}", payoutcontrollers.Get(payoutService, logg))
			r.Put("/payouts/{payoutId}/status", payoutcontrollers.UpdateStatus(payoutService, logg))
			r.Post("/payouts/{payoutId}/cancel", payoutcontrollers.Cancel(payoutService, logg))
			r.Get("/payouts/{payoutId}/transactions", payoutcontrollers.Transactions(payoutService, logg))

			r.Post("/payouts/{payoutId}/start-voting", payoutcontrollers.StartVoting(payoutService, logg))
			r.With(middleware.RateLimit(votePolicy, limiter, logg)).
				Post("/payouts/{payoutId}/vote", payoutcontrollers.CastVote(payoutService, logg))
			r.Get("/payouts/{payoutId}/can-vote", payoutcontrollers.CanVote(payoutService, logg))
			r.Get("/payouts/{payoutId}/voting-results", payoutcontrollers.VotingResults(payoutService, logg))
			r.Get("/payouts/{payoutId}/eligible-voters", payoutcontrollers.EligibleVoters(payoutService, logg))
			r.Get("/payouts/{payoutId}/voting-status", payoutcontrollers.VotingStatus(payoutService, logg))
		})
	})

	return r
}
