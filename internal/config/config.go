// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as logging, the database path, reproduction-window tuning, scheduler
// cron expressions, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-herd-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SchedulerConfig defines the periodic scan settings.
type SchedulerConfig struct {
	Tick              time.Duration // SCHEDULER_TICK: how often due-ness is evaluated
	PregnancyScanCron string        // PREGNANCY_SCAN_CRON
	CalvingScanCron   string        // CALVING_SCAN_CRON
	NotifyRatePerSec  float64       // NOTIFY_RATE_PER_SEC: per-user fan-out pacing
	NotifyBurst       int           // NOTIFY_BURST
}

// ReproductionConfig defines the breeding-workflow tuning knobs.
type ReproductionConfig struct {
	PregnancyCheckMinDays int // PREGNANCY_CHECK_MIN_DAYS: window lower bound since service
	PregnancyCheckMaxDays int // PREGNANCY_CHECK_MAX_DAYS: window upper bound since service
	CalvingAheadDays      int // CALVING_AHEAD_DAYS: upcoming-calving horizon
	LowStockThreshold     int // SEMEN_LOW_STOCK_THRESHOLD
}

// Config holds all configuration values for the application.
type Config struct {
	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath string // SQLite path

	Reproduction ReproductionConfig
	Scheduler    SchedulerConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
// A .env file in the working directory, when present, is loaded first
// without overriding variables already set in the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // missing .env is fine

	cfg := Config{
		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath: getenv("DB_PATH", "herd.db"),

		Reproduction: ReproductionConfig{
			PregnancyCheckMinDays: getint("PREGNANCY_CHECK_MIN_DAYS", 35),
			PregnancyCheckMaxDays: getint("PREGNANCY_CHECK_MAX_DAYS", 50),
			CalvingAheadDays:      getint("CALVING_AHEAD_DAYS", 7),
			LowStockThreshold:     getint("SEMEN_LOW_STOCK_THRESHOLD", 5),
		},

		Scheduler: SchedulerConfig{
			Tick:              getdur("SCHEDULER_TICK", time.Minute),
			PregnancyScanCron: getenv("PREGNANCY_SCAN_CRON", "0 7 * * *"),
			CalvingScanCron:   getenv("CALVING_SCAN_CRON", "30 7 * * *"),
			NotifyRatePerSec:  getfloat("NOTIFY_RATE_PER_SEC", 20.0),
			NotifyBurst:       getint("NOTIFY_BURST", 10),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-herd-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Reproduction.PregnancyCheckMinDays <= 0 || cfg.Reproduction.PregnancyCheckMaxDays <= 0 {
		return cfg, errors.New("pregnancy check window bounds must be positive")
	}
	if cfg.Reproduction.PregnancyCheckMinDays >= cfg.Reproduction.PregnancyCheckMaxDays {
		return cfg, errors.New("PREGNANCY_CHECK_MIN_DAYS must be less than PREGNANCY_CHECK_MAX_DAYS")
	}
	if cfg.Reproduction.CalvingAheadDays <= 0 {
		return cfg, errors.New("CALVING_AHEAD_DAYS must be > 0")
	}
	if cfg.Reproduction.LowStockThreshold < 0 {
		return cfg, errors.New("SEMEN_LOW_STOCK_THRESHOLD must be >= 0")
	}
	if cfg.Scheduler.Tick <= 0 {
		return cfg, errors.New("SCHEDULER_TICK must be a positive duration")
	}
	g := gronx.New()
	if !g.IsValid(cfg.Scheduler.PregnancyScanCron) {
		return cfg, errors.New("PREGNANCY_SCAN_CRON is not a valid cron expression")
	}
	if !g.IsValid(cfg.Scheduler.CalvingScanCron) {
		return cfg, errors.New("CALVING_SCAN_CRON is not a valid cron expression")
	}
	if cfg.Scheduler.NotifyRatePerSec <= 0 {
		return cfg, errors.New("NOTIFY_RATE_PER_SEC must be > 0")
	}
	if cfg.Scheduler.NotifyBurst < 1 {
		return cfg, errors.New("NOTIFY_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- env helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
