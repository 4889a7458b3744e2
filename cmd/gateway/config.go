package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"orders-gateway/middleware/orders/application"
	"orders-gateway/middleware/orders/domain"
)

type config struct {
	listenAddr string
	logLevel   slog.Level

	redisAddr      string
	redisPassword  string
	redisDB        int
	storeOpTimeout time.Duration

	idempotencyTTL  time.Duration
	idempotencyWait time.Duration
	failureMode     domain.FailureMode
	plansFile       string
	ordersBackend   string
	ordersDBPath    string

	authMode  string
	apiKey    string
	jwtSecret string

	concurrencyMax     int
	concurrencyTimeout time.Duration
	shieldRPS          float64
	shieldBurst        int

	rateStatsEnabled   bool
	rateStatsBackend   string
	rateStatsPrefix    string
	rateStatsTTL       time.Duration
	rateStatsBucket    string
	rateStatsTrackKeys bool

	metricsEnabled bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	if err := cfg.logLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg.redisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.storeOpTimeout = getenvDurationDefault("STORE_OP_TIMEOUT", 500*time.Millisecond)

	cfg.idempotencyTTL = getenvDurationDefault("IDEMPOTENCY_TTL", application.DefaultRecordTTL)
	cfg.idempotencyWait = getenvDurationDefault("IDEMPOTENCY_WAIT", application.DefaultWaitBudget)
	mode, ok := domain.ParseFailureMode(strings.ToLower(strings.TrimSpace(os.Getenv("ADMISSION_FAILURE_MODE"))))
	if !ok {
		return config{}, errors.New("ADMISSION_FAILURE_MODE must be closed or open")
	}
	cfg.failureMode = mode
	cfg.plansFile = os.Getenv("PLANS_FILE")
	cfg.ordersBackend = strings.ToLower(getenvDefault("ORDERS_BACKEND", "redis"))
	cfg.ordersDBPath = getenvDefault("ORDERS_DB_PATH", "orders.db")

	cfg.authMode = strings.ToLower(getenvDefault("AUTH_MODE", "apikey"))
	cfg.apiKey = os.Getenv("API_KEY")
	cfg.jwtSecret = os.Getenv("JWT_SECRET")

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)
	cfg.shieldRPS = getenvFloatDefault("SHIELD_RPS", 0)
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 pode dar a impressão de que
	// o escudo não está funcionando, porque as primeiras ~20 passam.
	if burst, ok := getenvInt("SHIELD_BURST"); ok {
		cfg.shieldBurst = burst
	} else {
		cfg.shieldBurst = 20
		if cfg.shieldRPS > 0 && cfg.shieldRPS < 1 {
			cfg.shieldBurst = 1
		}
	}

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsBackend = strings.ToLower(getenvDefault("RATE_STATS_BACKEND", "redis"))
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "orders:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	cfg.metricsEnabled = getenvBoolDefault("METRICS_ENABLED", true)

	switch cfg.authMode {
	case "none":
	case "apikey":
		if cfg.apiKey == "" {
			return config{}, errors.New("API_KEY is required when AUTH_MODE=apikey")
		}
	case "jwt":
		if cfg.jwtSecret == "" {
			return config{}, errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return config{}, fmt.Errorf("AUTH_MODE must be none, apikey or jwt, got %q", cfg.authMode)
	}
	if cfg.ordersBackend != "redis" && cfg.ordersBackend != "bolt" {
		return config{}, errors.New("ORDERS_BACKEND must be redis or bolt")
	}
	if cfg.rateStatsBackend != "redis" && cfg.rateStatsBackend != "memory" {
		return config{}, errors.New("RATE_STATS_BACKEND must be redis or memory")
	}
	if strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required")
	}
	if cfg.storeOpTimeout <= 0 {
		return config{}, errors.New("STORE_OP_TIMEOUT must be > 0")
	}
	if cfg.idempotencyTTL < time.Second {
		return config{}, errors.New("IDEMPOTENCY_TTL must be >= 1s")
	}
	if cfg.idempotencyWait <= 0 {
		return config{}, errors.New("IDEMPOTENCY_WAIT must be > 0")
	}
	if cfg.shieldRPS < 0 {
		return config{}, errors.New("SHIELD_RPS must be >= 0")
	}
	if cfg.shieldRPS > 0 && cfg.shieldBurst <= 0 {
		return config{}, errors.New("SHIELD_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
