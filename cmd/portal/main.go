// Command portal runs the blue carbon registry portal API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/oceanledger/bluecarbon/internal/api"
	"github.com/oceanledger/bluecarbon/internal/config"
	"github.com/oceanledger/bluecarbon/internal/database"
	"github.com/oceanledger/bluecarbon/internal/jobs"
	"github.com/oceanledger/bluecarbon/internal/logging"
	"github.com/oceanledger/bluecarbon/internal/metrics"
	"github.com/oceanledger/bluecarbon/internal/middleware"
	"github.com/oceanledger/bluecarbon/internal/proposal"
	"github.com/oceanledger/bluecarbon/internal/wallet"
	supa "github.com/oceanledger/bluecarbon/supabase/client"
)

func main() {
	// Missing .env is fine; the environment may be set by the deployment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.NewDefault().WithError(err).Fatal("load configuration")
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("portal exited")
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	apiKey := cfg.Supabase.ServiceKey
	if apiKey == "" {
		apiKey = cfg.Supabase.AnonKey
	}

	supaClient, err := supa.NewResilient(supa.Config{
		URL:    cfg.Supabase.URL,
		APIKey: apiKey,
	}, supa.DefaultRetryConfig(), supa.DefaultCircuitBreakerConfig())
	if err != nil {
		return err
	}

	messages := config.LoadMessageCatalogOrDefault()

	// Wallet status: Supabase store unless a direct database DSN is set,
	// Redis cache when configured.
	var walletStore wallet.Store = wallet.NewSupabaseStore(supaClient)
	var proposalStore proposal.Store = proposal.NewSupabaseStore(supaClient)
	if cfg.Database.DSN != "" {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		walletStore = database.NewWalletStore(db)
		proposalStore = database.NewProposalStore(db)
		logger.Info("using direct database storage")
	}

	var cache wallet.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		cache = wallet.NewRedisCache(rdb, cfg.Redis.TTL, logger)
	}

	walletSvc := wallet.NewStatusService(walletStore, cache, messages, logger)

	watcher := wallet.NewWatcher(supa.NewRealtimeClient(cfg.Supabase.URL, apiKey), logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watcher.Start(ctx); err != nil {
		// Realtime is an enhancement; registration still notifies locally.
		logger.WithError(err).Warn("realtime watcher unavailable")
	}
	defer watcher.Stop(context.Background())

	proposalSvc := proposal.NewService(proposalStore, logger)

	scheduler := jobs.NewScheduler(cache, logger)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	server := api.NewServer(walletSvc, walletSvc, watcher, proposalSvc, logger)

	auth := middleware.NewAuthMiddleware(cfg.Supabase.JWTSecret, logger, nil)
	cors := middleware.NewCORSMiddleware(strings.Split(cfg.Server.AllowedOrigins, ","))
	tracing := middleware.NewTracingMiddleware(logger)
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst, logger)
	limiter.StartCleanup(10 * time.Minute)

	r := chi.NewRouter()
	r.Use(tracing.Handler)
	r.Use(cors.Handler)
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", api.Healthz)
	r.Method("GET", "/metrics", api.MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Handler)
		r.Use(limiter.Handler)
		r.Use(middleware.RequireUserID)
		r.Mount("/", server.Routes())
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.Server.Addr}).Info("portal listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
