package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orders-gateway/middleware/orders"
	"orders-gateway/middleware/orders/application"
	"orders-gateway/middleware/orders/domain"
	"orders-gateway/middleware/orders/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redisAddr,
		Password: cfg.redisPassword,
		DB:       cfg.redisDB,
	})
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_, err := rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		return errors.Join(errors.New("redis ping"), err)
	}

	kv := infra.NewRedisStore(rdb, infra.WithOpTimeout(cfg.storeOpTimeout))

	plans := infra.DefaultPlanDirectory()
	quotas := domain.DefaultQuotas()
	if cfg.plansFile != "" {
		plans, quotas, err = infra.LoadPlansFile(cfg.plansFile)
		if err != nil {
			return err
		}
	}

	var ledger domain.OrderRepository
	switch cfg.ordersBackend {
	case "bolt":
		// arquivo local: só para uma instância
		repo, err := infra.OpenBoltOrderRepository(cfg.ordersDBPath)
		if err != nil {
			return errors.Join(errors.New("open orders db"), err)
		}
		defer func() { _ = repo.Close() }()
		logger.Warn("orders ledger is local to this instance; do not run more than one replica",
			"path", cfg.ordersDBPath)
		ledger = repo
	default:
		ledger = infra.NewRedisOrderRepository(rdb, cfg.storeOpTimeout)
	}

	var metrics *infra.Metrics
	var coreMetrics domain.Metrics = domain.NopMetrics{}
	if cfg.metricsEnabled {
		metrics = infra.NewMetrics()
		coreMetrics = metrics
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		switch cfg.rateStatsBackend {
		case "memory":
			statsStore = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.rateStatsTrackKeys))
		default:
			statsStore = infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.rateStatsPrefix),
				infra.WithStatsTTL(cfg.rateStatsTTL),
				infra.WithStatsBucket(cfg.rateStatsBucket),
				infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
			)
		}
	}

	admission := &application.AdmissionController{
		Store:       kv,
		Plans:       plans,
		Quotas:      quotas,
		FailureMode: cfg.failureMode,
		Logger:      logger,
		Metrics:     coreMetrics,
	}
	cache := &application.IdempotencyCache{
		Store:      kv,
		TTL:        cfg.idempotencyTTL,
		WaitBudget: cfg.idempotencyWait,
		Logger:     logger,
		Metrics:    coreMetrics,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	routerCfg := orders.RouterConfig{
		Creator: &application.WriteCoordinator{
			Admission: admission,
			Cache:     cache,
			Orders:    ledger,
		},
		Querier:   application.OrderReader{Orders: ledger},
		Admission: admission,
		Auth:      authenticator(cfg),
		Concurrency: orders.ConcurrencyOptions{
			AcquireTimeout: cfg.concurrencyTimeout,
		},
		Stats:  statsStore,
		Health: kv,
		Logger: logger,
	}
	if cfg.shieldRPS > 0 {
		shield := infra.NewShield(cfg.shieldRPS, cfg.shieldBurst)
		shield.StartJanitor(ctx)
		routerCfg.Shield = shield
	}
	if cfg.concurrencyMax > 0 {
		pool := infra.NewChanPool(cfg.concurrencyMax)
		routerCfg.Concurrency.Pool = pool
		if metrics != nil {
			metrics.TrackPool(pool)
		}
	}
	if metrics != nil {
		routerCfg.Metrics = metrics.Handler()
		routerCfg.Observe = metrics
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           orders.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		"addr", cfg.listenAddr,
		"redis", cfg.redisAddr,
		"auth_mode", cfg.authMode,
		"failure_mode", cfg.failureMode.String(),
		"idempotency_ttl", cfg.idempotencyTTL.String(),
		"idempotency_wait", cfg.idempotencyWait.String(),
		"orders_backend", cfg.ordersBackend,
	)
	logger.Info("limits",
		"concurrency_max", cfg.concurrencyMax,
		"concurrency_timeout", cfg.concurrencyTimeout.String(),
		"shield_rps", cfg.shieldRPS,
		"shield_burst", cfg.shieldBurst,
		"stats_enabled", cfg.rateStatsEnabled,
		"stats_backend", cfg.rateStatsBackend,
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func authenticator(cfg config) orders.Authenticator {
	switch cfg.authMode {
	case "apikey":
		return orders.APIKeyAuth(cfg.apiKey)
	case "jwt":
		return orders.JWTAuth([]byte(cfg.jwtSecret))
	default:
		return orders.AcceptAnyBearer()
	}
}
