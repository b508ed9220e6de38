package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "sigtrip_wrapper/internal/adapters/http_server"
	"sigtrip_wrapper/internal/adapters/observability"
	redisad "sigtrip_wrapper/internal/adapters/redis"
	"sigtrip_wrapper/internal/adapters/sigtrip"
	"sigtrip_wrapper/internal/app"
	"sigtrip_wrapper/internal/catalog"
	"sigtrip_wrapper/internal/shared"
	mysqlrepo "sigtrip_wrapper/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.AppVersion)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	upstream, err := sigtrip.New(sigtrip.Options{
		URL:     cfg.UpstreamURL,
		APIKey:  cfg.UpstreamKey,
		Timeout: cfg.UpstreamTimeout(),
		Retries: cfg.RetryAttempts,
		RPS:     cfg.UpstreamRPS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize upstream client")
	}
	cat, err := catalog.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load property catalog")
	}
	provider := app.NewSigtripProvider(sigtrip.ProviderName, upstream, cat, cfg.SearchWorkers)

	opts := []app.Option{app.WithObserver(observability.Recorder{})}
	var checks []func(context.Context) error

	if cfg.RedisAddr != "" {
		cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer cache.Close()
		opts = append(opts, app.WithCache(cache, cfg.SessionTTL()))
		checks = append(checks, cache.Ping)
		log.Info().Str("addr", cfg.RedisAddr).Msg("booking idempotency enabled")
	}
	if cfg.MySQLDSN != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		repo, err := mysqlrepo.Open(pingCtx, cfg.MySQLDSN)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("booking journal unavailable")
		}
		defer repo.Close()
		opts = append(opts, app.WithJournal(repo))
		checks = append(checks, repo.Ping)
		log.Info().Msg("booking journal enabled")
	}

	svc := app.NewService(provider, opts...)
	h := &server.Handlers{
		Svc: svc,
		Readiness: func(ctx context.Context) []string {
			issues := cfg.ReadinessIssues()
			for _, check := range checks {
				if err := check(ctx); err != nil {
					issues = append(issues, err.Error())
				}
			}
			return issues
		},
	}

	srv := server.New(2 * time.Minute)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.Mount("/mcp", h.NewMCPHandler(cfg.AppVersion))
	srv.MountHandlers(h)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("upstream", upstream.URL()).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
