// Package server wires the gift recommendation core into an HTTP service and
// manages its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/present_ponder/internal/blob"
	appconfig "github.com/lewisedginton/present_ponder/internal/config"
	"github.com/lewisedginton/present_ponder/internal/identity"
	"github.com/lewisedginton/present_ponder/internal/monitoring"
	"github.com/lewisedginton/present_ponder/internal/persistence"
	"github.com/lewisedginton/present_ponder/internal/persistence/postgres"
	"github.com/lewisedginton/present_ponder/internal/persistence/supabase"
	"github.com/lewisedginton/present_ponder/internal/recommendation"
	"github.com/lewisedginton/present_ponder/internal/session"
	"github.com/lewisedginton/present_ponder/pkg/httpmiddleware"
	"github.com/lewisedginton/present_ponder/pkg/logger"
	"github.com/lewisedginton/present_ponder/pkg/metrics"
	"github.com/lewisedginton/present_ponder/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

// Server encapsulates the HTTP service components and lifecycle management
type Server struct {
	cfg        *appconfig.AppConfig
	log        logger.Logger
	metrics    *metrics.Metrics
	monitor    *monitoring.HealthMonitor
	registry   *session.Registry
	api        *API
	httpServer *http.Server
	pool       *pgxpool.Pool
	redis      *redis.Client
	cancel     context.CancelFunc

	// recommenderHealth is checked by readiness when set.
	recommenderHealth string
}

// New creates a new Server instance with all components initialized
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewMetrics(cfg.Metrics.EnableHTTPMetrics, log),
	}

	blobs, err := s.createBlobProvider(ctx)
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("failed to create guest storage: %w", err)
	}

	store, err := s.createStore(ctx)
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	pipeline, err := s.createPipeline(store)
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("failed to create recommendation pipeline: %w", err)
	}

	verifier, err := identity.NewVerifier(identity.VerifierConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	s.registry = session.NewRegistry(session.Dependencies{
		Blobs:          blobs,
		Store:          store,
		Pipeline:       pipeline,
		Metrics:        s.metrics,
		Logger:         log,
		GuestFreshness: cfg.Guest.Freshness,
	})

	monitorCfg := monitoring.Config{
		Logger:           log,
		Version:          cfg.Version,
		Postgres:         s.pool,
		RecommenderURL:   s.recommenderHealth,
		Browsers:         s.registry.Len,
		Timeout:          cfg.Health.Timeout,
		FailureThreshold: cfg.Health.FailureThreshold,
	}
	if s.redis != nil {
		monitorCfg.Redis = s.redis
	}
	s.monitor = monitoring.NewHealthMonitor(monitorCfg)

	s.api = NewAPI(APIConfig{
		Registry:       s.registry,
		Verifier:       verifier,
		Logger:         log,
		MaxRequestSize: cfg.Security.MaxRequestSize,
		SecureCookies:  cfg.Security.SecureCookies,
	})

	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout(),
		ReadTimeout:       cfg.HTTP.ReadTimeout(),
		WriteTimeout:      cfg.HTTP.WriteTimeout(),
		IdleTimeout:       cfg.HTTP.IdleTimeout(),
	}

	return s, nil
}

// Router builds the HTTP handler: shared middleware, health endpoints and the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.EnableLogging = true
	cors := httpmiddleware.DefaultCORSConfig()
	if len(s.cfg.Security.CORSAllowedOrigins) > 0 {
		cors.AllowedOrigins = s.cfg.Security.CORSAllowedOrigins
	}
	mw.CORS = &cors
	mw.Security = &secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IsDevelopment:      s.cfg.IsDevelopment(),
	}
	httpmiddleware.ApplyToRouter(r, mw)
	r.Use(s.metrics.HTTPMiddleware())

	s.monitor.RegisterHandlers(r)

	s.api.Mount(r)
	return r
}

// Run starts the listeners and blocks until ctx is cancelled, a shutdown
// signal arrives or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	s.setupGracefulShutdown()

	errChans := []<-chan error{s.listen()}
	if s.cfg.Metrics.ExposeMetrics {
		errChans = append(errChans, s.metrics.Listen(s.cfg.Metrics.Port))
	}
	errs := utils.MergeErrorChans(errChans...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.registry.RunSweeper(ctx, s.cfg.Guest.SweepInterval, s.cfg.Guest.BrowserIdleTimeout)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil {
			s.log.Error("Listener failed", logger.ErrorField(err))
			runErr = err
		}
	}
	cancel()
	s.monitor.MarkShuttingDown()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout) //nolint:contextcheck // New context needed for shutdown
	defer stop()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP server shutdown error", logger.ErrorField(err))
	}
	if err := s.metrics.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Metrics server shutdown error", logger.ErrorField(err))
	}
	wg.Wait()
	s.closeResources()

	s.log.Info("Server stopped")
	return runErr
}

func (s *Server) listen() <-chan error {
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.log.Info("HTTP server listening", logger.StringField("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	return errChan
}

func (s *Server) closeResources() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Warn("Failed to close redis client", logger.ErrorField(err))
		}
	}
}

// createBlobProvider builds the storage behind every browser's guest slot.
func (s *Server) createBlobProvider(ctx context.Context) (blob.Provider, error) {
	cfg := &s.cfg.Guest

	switch cfg.Backend {
	case "memory":
		s.log.Warn("Using in-memory guest storage; guest sessions are lost on restart")
		return blob.New(blob.Config{Backend: blob.BackendMemory})

	case "local":
		s.log.Info("Using local file-based guest storage", logger.StringField("directory", cfg.LocalDir))

		// 0750 needed for directory traversal
		if err := os.MkdirAll(cfg.LocalDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return blob.New(blob.Config{Backend: blob.BackendLocal, BaseDir: cfg.LocalDir})

	case "s3":
		s.log.Info("Using S3-based guest storage",
			logger.StringField("bucket", cfg.S3Bucket),
			logger.StringField("prefix", cfg.S3Prefix),
			logger.StringField("region", cfg.S3Region))

		client, err := blob.NewS3Client(ctx, blob.S3ClientConfig{Region: cfg.S3Region, Profile: cfg.S3Profile})
		if err != nil {
			return nil, err
		}
		return blob.New(blob.Config{
			Backend: blob.BackendS3,
			Bucket:  cfg.S3Bucket,
			Prefix:  cfg.S3Prefix,
			Client:  client,
		})

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		s.log.Info("Using redis guest storage", logger.StringField("addr", opts.Addr))

		s.redis = redis.NewClient(opts)
		return blob.New(blob.Config{
			Backend: blob.BackendRedis,
			Redis:   s.redis,
			RedisOpts: []blob.RedisOption{
				blob.WithRedisKeyPrefix(cfg.RedisPrefix),
				blob.WithRedisTTL(cfg.RedisTTL),
			},
		})

	default:
		return nil, fmt.Errorf("unsupported guest backend: %s (must be 'memory', 'local', 's3' or 'redis')", cfg.Backend)
	}
}

// createStore builds the persistent store for account data.
func (s *Server) createStore(ctx context.Context) (persistence.Store, error) {
	cfg := &s.cfg.Store

	switch cfg.Backend {
	case "memory":
		s.log.Warn("Using in-memory store; account data is lost on restart")
		return persistence.NewMemory(), nil

	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s.pool = pool

		if cfg.AutoMigrate {
			m := postgres.NewMigrationManager(pool, s.log)
			err := m.Up()
			if closeErr := m.Close(); closeErr != nil {
				s.log.Warn("Failed to close migrator", logger.ErrorField(closeErr))
			}
			if err != nil {
				return nil, fmt.Errorf("failed to apply migrations: %w", err)
			}
		}

		s.log.Info("Using postgres store",
			logger.StringField("host", cfg.Postgres.Host),
			logger.StringField("database", cfg.Postgres.Database))
		return postgres.New(pool, s.log), nil

	case "supabase":
		s.log.Info("Using supabase store", logger.StringField("url", cfg.SupabaseURL))
		store, err := supabase.New(supabase.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseKey, Logger: s.log})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported store backend: %s (must be 'memory', 'postgres' or 'supabase')", cfg.Backend)
	}
}

func (s *Server) createPipeline(store persistence.Store) (*recommendation.Pipeline, error) {
	cfg := &s.cfg.Recommender

	client, err := recommendation.NewClient(recommendation.ClientConfig{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Logger:            s.log,
	})
	if err != nil {
		return nil, err
	}
	if s.cfg.Health.CheckRecommender {
		s.recommenderHealth = client.HealthURL()
	}

	builder := recommendation.NewBuilder(cfg.Location, cfg.Count)
	return recommendation.NewPipeline(builder, client, store, s.metrics), nil
}

// setupGracefulShutdown sets up signal handling for graceful shutdown
func (s *Server) setupGracefulShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		s.log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))

		if s.cancel != nil {
			s.cancel()
		}

		// Give in-flight requests time to finish, then force exit
		time.AfterFunc(30*time.Second, func() {
			s.log.Warn("Force exiting due to timeout")
			os.Exit(1)
		})
	}()
}
