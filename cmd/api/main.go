package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "seulanga/internal/adapters/http_server"
	"seulanga/internal/adapters/mq"
	"seulanga/internal/adapters/observability"
	redisad "seulanga/internal/adapters/redis"
	"seulanga/internal/adapters/webhook"
	"seulanga/internal/app"
	"seulanga/internal/authz"
	"seulanga/internal/domain"
	"seulanga/internal/fixtures"
	"seulanga/internal/shared"
	"seulanga/internal/storage/memory"
	mysqlstore "seulanga/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	shutdownTracer, err := observability.InitTracer(ctx, "seulanga-api", cfg.AppEnv, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("tracer init failed")
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	store := openStore(ctx, cfg)

	opts := []app.Option{app.WithLocation(cfg.Location())}
	if cfg.RedisAddr != "" {
		cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; listings will be served from the store")
		} else {
			defer cache.Close()
			opts = append(opts, app.WithCache(cache, cfg.CacheTTL))
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache enabled")
		}
	}
	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable; lifecycle events disabled")
		} else {
			defer pub.Close()
			opts = append(opts, app.WithEvents(pub))
			log.Info().Str("exchange", cfg.EventsExchange).Msg("event publishing enabled")
		}
	}
	if cfg.WebhookURL != "" {
		hook, err := webhook.New(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("webhook init failed")
		}
		opts = append(opts, app.WithEvents(hook))
		log.Info().Str("url", cfg.WebhookURL).Msg("webhook delivery enabled")
	}
	engine := app.NewEngine(store, authz.NewGuard(), opts...)
	// runs before the publishers' deferred Close
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Close(drainCtx); err != nil {
			log.Warn().Err(err).Msg("undelivered events at shutdown")
		}
	}()

	// http
	srv := server.New(server.Options{Timeout: cfg.HTTPTimeout, RateLimit: cfg.RateLimitRPS})
	reg := observability.InitRegistry()
	if cfg.MetricsAddr != "" {
		observability.Serve(cfg.MetricsAddr, reg)
	} else {
		srv.Mount("/metrics", observability.MetricsHandler(reg))
	}
	srv.MountHandlers(&server.Handlers{E: engine, Auth: server.NewTokenAuth(cfg.JWTSecret)})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func openStore(ctx context.Context, cfg shared.Config) domain.Store {
	if cfg.Store == "mysql" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		return mysqlstore.New(db)
	}

	s := memory.New()
	if err := fixtures.LoadFile(ctx, s, cfg.SeedFile); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	return s
}
