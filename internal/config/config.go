package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // containers often ship without zoneinfo
)

// Config captures everything main needs to wire the server.
type Config struct {
	Port        string
	AppEnv      string
	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTTTL    time.Duration

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	PaymentProvider  string
	DevPaymentSecret string

	CORSOrigins []string
	// Location turns "now" into the calendar date used for availability.
	Location               *time.Location
	AvailabilityWindowDays int
}

// IsDev reports whether dev-only routes may be mounted.
func (c Config) IsDev() bool { return c.AppEnv == "dev" }

// ErrNoJWTSecret is returned outside dev when JWT_SECRET is unset.
var ErrNoJWTSecret = errors.New("JWT_SECRET is required outside APP_ENV=dev")

const devJWTSecret = "dev-secret-key-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
// APP_ENV defaults to production; only dev falls back to a built-in JWT secret.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:             getenv("PORT", "3000"),
		AppEnv:           getenv("APP_ENV", "production"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTTTL:           7 * 24 * time.Hour,
		SupabaseURL:      os.Getenv("SUPABASE_URL"),
		SupabaseKey:      os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:   getenv("SUPABASE_BUCKET", "legal-aid"),
		PaymentProvider:  getenv("PAYMENT_PROVIDER", "mock"),
		DevPaymentSecret: os.Getenv("DEV_PAYMENT_SECRET"),
		Location:         time.UTC,

		AvailabilityWindowDays: 30,
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return cfg, ErrNoJWTSecret
		}
		cfg.JWTSecret = devJWTSecret
	}
	if d, err := time.ParseDuration(os.Getenv("JWT_TTL")); err == nil && d > 0 {
		cfg.JWTTTL = d
	}
	if tz := os.Getenv("APP_TIMEZONE"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.Location = loc
		}
	}
	if n, err := strconv.Atoi(os.Getenv("AVAILABILITY_WINDOW_DAYS")); err == nil && n > 0 && n <= 180 {
		cfg.AvailabilityWindowDays = n
	}
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
