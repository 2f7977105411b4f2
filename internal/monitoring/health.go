// Package monitoring assembles the service's health checks and serves the liveness and readiness endpoints.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lewisedginton/present_ponder/pkg/health"
	"github.com/lewisedginton/present_ponder/pkg/health/checkers"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// Health status constants
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusReady     = "ready"
	statusNotReady  = "not_ready"
)

var errShuttingDown = errors.New("shutting down")

// Config holds configuration for the health monitor. Every dependency is optional
// and only adds a readiness check when set.
type Config struct {
	Logger  logger.Logger
	Version string

	Postgres       *pgxpool.Pool
	Redis          redis.UniversalClient
	RecommenderURL string // health URL of the recommendation service
	// Browsers reports the number of live browser sessions for the combined endpoint.
	Browsers func() int

	Timeout          time.Duration
	FailureThreshold int
}

// HealthMonitor manages health checks and monitoring endpoints for the application
type HealthMonitor struct {
	checker      *health.HealthChecker
	logger       logger.Logger
	version      string
	browsers     func() int
	startTime    time.Time
	shuttingDown atomic.Bool
}

// NewHealthMonitor creates a new health monitor with configured checks
func NewHealthMonitor(cfg Config) *HealthMonitor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	failureThreshold := cfg.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 3
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	hm := &HealthMonitor{
		checker: health.New(
			health.WithLogger(log),
			health.WithTimeout(timeout),
			health.WithFailureThreshold(failureThreshold),
		),
		logger:    log,
		version:   cfg.Version,
		browsers:  cfg.Browsers,
		startTime: time.Now(),
	}

	hm.checker.AddLivenessCheck(health.NewCheckFunc("process", func(context.Context) error {
		return nil
	}))

	// Fails as soon as shutdown begins so load balancers drain this instance.
	hm.checker.AddReadinessCheck(health.NewCheckFunc("shutdown", func(context.Context) error {
		if hm.shuttingDown.Load() {
			return errShuttingDown
		}
		return nil
	}))
	if cfg.Postgres != nil {
		hm.checker.AddReadinessCheck(checkers.NewPostgresChecker(cfg.Postgres, "postgres"))
	}
	if cfg.Redis != nil {
		hm.checker.AddReadinessCheck(checkers.NewRedisChecker(cfg.Redis, "guest_redis"))
	}
	if cfg.RecommenderURL != "" {
		hm.checker.AddReadinessCheck(checkers.NewHTTPChecker(cfg.RecommenderURL, "recommender"))
	}

	return hm
}

// MarkShuttingDown makes readiness fail from now on.
func (hm *HealthMonitor) MarkShuttingDown() {
	hm.shuttingDown.Store(true)
}

// LivenessHandler serves GET /health/live.
func (hm *HealthMonitor) LivenessHandler() http.HandlerFunc {
	return hm.checker.LivenessHandler()
}

// ReadinessHandler serves GET /health/ready.
func (hm *HealthMonitor) ReadinessHandler() http.HandlerFunc {
	return hm.checker.ReadinessHandler()
}

// HealthHandler returns a combined health endpoint that includes both liveness and readiness
// GET /health - Returns comprehensive health status
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		livenessStatus, livenessErr := hm.checker.CheckLiveness(ctx)
		readinessStatus, readinessErr := hm.checker.CheckReadiness(ctx)

		liveness := map[string]interface{}{"status": statusHealthy, "checks": livenessStatus.Checks}
		readiness := map[string]interface{}{"status": statusReady, "checks": readinessStatus.Checks}
		response := map[string]interface{}{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"version":   hm.version,
			"liveness":  liveness,
			"readiness": readiness,
		}
		if hm.browsers != nil {
			response["browser_sessions"] = hm.browsers()
		}

		overallHealthy := true
		if livenessErr != nil {
			liveness["status"] = statusUnhealthy
			liveness["error"] = livenessErr.Error()
			overallHealthy = false
		}
		if readinessErr != nil {
			readiness["status"] = statusNotReady
			readiness["error"] = readinessErr.Error()
			overallHealthy = false
		}

		w.Header().Set("Content-Type", "application/json")
		if !overallHealthy {
			response["status"] = statusUnhealthy
			w.WriteHeader(http.StatusServiceUnavailable)
			hm.logger.Warn("Health check failed")
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// RegisterHandlers registers all health check endpoints on the router
func (hm *HealthMonitor) RegisterHandlers(r chi.Router) {
	r.Get("/health", hm.HealthHandler())
	r.Get("/health/live", hm.LivenessHandler())
	r.Get("/health/ready", hm.ReadinessHandler())
}
