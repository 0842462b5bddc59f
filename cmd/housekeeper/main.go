package main

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"seulanga/internal/adapters/mq"
	"seulanga/internal/adapters/observability"
	"seulanga/internal/adapters/webhook"
	"seulanga/internal/app"
	"seulanga/internal/authz"
	"seulanga/internal/shared"
	mysqlstore "seulanga/internal/storage/mysql"
)

// housekeeper runs the no-show sweep once for every configured business.
// Schedule it daily after the check-in window closes.
func main() {
	ctx := context.Background()
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if cfg.Store != "mysql" {
		log.Fatal().Str("store", cfg.Store).Msg("housekeeper needs STORE=mysql")
	}
	if len(cfg.HousekeeperBusinesses) == 0 {
		log.Warn().Msg("HOUSEKEEPER_BUSINESSES is empty; nothing to do")
		return
	}
	if cfg.HousekeeperWorkers < 1 {
		cfg.HousekeeperWorkers = 1
	}

	log.Info().
		Int("businesses", len(cfg.HousekeeperBusinesses)).
		Int("workers", cfg.HousekeeperWorkers).
		Str("tz", cfg.BusinessTZ).
		Msg("housekeeper starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	opts := []app.Option{app.WithLocation(cfg.Location())}
	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable; no-show events disabled")
		} else {
			defer pub.Close()
			opts = append(opts, app.WithEvents(pub))
		}
	}
	if cfg.WebhookURL != "" {
		hook, err := webhook.New(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("webhook init failed")
		}
		opts = append(opts, app.WithEvents(hook))
	}
	engine := app.NewEngine(mysqlstore.New(db), authz.NewGuard(), opts...)

	sem := semaphore.NewWeighted(int64(cfg.HousekeeperWorkers))
	var (
		wg     sync.WaitGroup
		total  atomic.Int64
		failed atomic.Int64
	)
	for _, biz := range cfg.HousekeeperBusinesses {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(businessID string) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := engine.SweepNoShows(ctx, businessID)
			total.Add(int64(n))
			if err != nil {
				failed.Add(1)
				log.Warn().Str("business", businessID).Int("marked", n).Err(err).Msg("sweep failed")
				return
			}
			log.Info().Str("business", businessID).Int("marked", n).Msg("sweep ok")
		}(biz)
	}

	wg.Wait()

	// no-show events are queued; deliver them before the publishers close
	drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := engine.Close(drainCtx); err != nil {
		log.Warn().Err(err).Msg("undelivered events at exit")
	}
	log.Info().Int64("no_shows", total.Load()).Int64("failed", failed.Load()).Msg("housekeeping completed")
}
