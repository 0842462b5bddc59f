package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR"`

	// Store selects the authoritative store: memory or mysql.
	Store    string `env:"STORE" envDefault:"memory"`
	MySQLDSN string `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/seulanga?parseTime=true&charset=utf8mb4,utf8&loc=UTC"`
	SeedFile string `env:"SEED_FILE"`

	RedisAddr string        `env:"REDIS_ADDR"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	RedisPass string        `env:"REDIS_PASSWORD"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"60s"`

	RabbitURL      string `env:"RABBIT_URL"`
	EventsExchange string `env:"EVENTS_EXCHANGE" envDefault:"seulanga.events"`

	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	WebhookRPS    int    `env:"WEBHOOK_RPS" envDefault:"5"`

	JWTSecret string `env:"JWT_SECRET"`
	// BusinessTZ decides which calendar day "today" is for check-in/out.
	BusinessTZ   string        `env:"BUSINESS_TZ" envDefault:"Asia/Jakarta"`
	RateLimitRPS float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	HousekeeperBusinesses []string `env:"HOUSEKEEPER_BUSINESSES" envSeparator:","`
	HousekeeperWorkers    int      `env:"HOUSEKEEPER_WORKERS" envDefault:"4"`
}

// MinJWTSecret is the shortest HS256 key accepted outside dev.
const MinJWTSecret = 32

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.Store != "memory" && c.Store != "mysql" {
		return Config{}, fmt.Errorf("STORE must be memory or mysql, got %q", c.Store)
	}
	switch {
	case c.JWTSecret == "":
		return Config{}, errors.New("JWT_SECRET is required")
	case len(c.JWTSecret) < MinJWTSecret && c.AppEnv != "dev":
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes outside APP_ENV=dev", MinJWTSecret)
	case len(c.JWTSecret) < MinJWTSecret:
		log.Warn().Int("len", len(c.JWTSecret)).Msg("short JWT_SECRET accepted in dev")
	}
	return c, nil
}

// Location resolves BusinessTZ, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTZ)
	if err != nil {
		log.Warn().Err(err).Str("tz", c.BusinessTZ).Msg("unknown BUSINESS_TZ, using UTC")
		return time.UTC
	}
	return loc
}
