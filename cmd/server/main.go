package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"superpos/backend/internal/cache"
	"superpos/backend/internal/cart"
	"superpos/backend/internal/config"
	"superpos/backend/internal/events"
	"superpos/backend/internal/httpapi"
	"superpos/backend/internal/loyalty"
	"superpos/backend/internal/seed"
	"superpos/backend/internal/service"
	"superpos/backend/internal/store"
	"superpos/backend/internal/store/memory"
	pgstore "superpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	if err := validateCartConfig(cfg); err != nil {
		logger.Fatal("invalid cart configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dataset, err := loadDataset(cfg)
	if err != nil {
		logger.Fatal("load seed data", zap.String("seed_file", cfg.SeedFile), zap.Error(err))
	}

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("postgres migration failed", zap.Error(err))
		}
		seeded, err := pg.Seed(ctx, dataset)
		if err != nil {
			logger.Fatal("postgres seed failed", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository: postgres", zap.Bool("seeded", seeded))
	} else {
		mem, err := memory.New(dataset)
		if err != nil {
			logger.Fatal("in-memory store", zap.Error(err))
		}
		repo = mem
		logger.Info("repository: in-memory")
	}

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop report cache", zap.Error(err))
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("cache: noop")
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTransactionTopic, logger.Named("events"))
		if err != nil {
			logger.Warn("kafka unavailable, transaction events disabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.Error(err))
		} else {
			publisher = kafka
			closers = append(closers, kafka.Close)
			logger.Info("events: kafka", zap.String("topic", cfg.KafkaTransactionTopic))
		}
	}

	settings := service.DefaultSettings()
	settings.Cart = cartOptions(cfg, checkoutHooks(cfg, repo, publisher, logger), logger)
	settings.ReportCacheTTL = time.Duration(cfg.ReportCacheTTLSeconds) * time.Second

	svc := service.New(repo, reportCache, settings, logger.Named("service"))
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo, logger.Named("auth"))
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger.Named("http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.IsLocal() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

func loadDataset(cfg config.Config) (seed.Dataset, error) {
	if cfg.SeedFile != "" {
		return seed.Load(cfg.SeedFile)
	}
	return seed.Default()
}

// checkoutHooks lists what runs after every completed sale, in order.
func checkoutHooks(cfg config.Config, repo store.CustomerStore, publisher events.Publisher, logger *zap.Logger) []cart.CheckoutHook {
	var hooks []cart.CheckoutHook
	if cfg.LoyaltyAccrualEnabled {
		accrual := loyalty.NewAccrual(repo, cfg.LoyaltyPointsPerUnit, logger.Named("loyalty"))
		hooks = append(hooks, accrual.Apply)
	}
	hooks = append(hooks, events.Hook(publisher))
	return hooks
}

func cartOptions(cfg config.Config, hooks []cart.CheckoutHook, logger *zap.Logger) cart.Options {
	opts := cart.DefaultOptions()
	opts.TaxRate = cfg.TaxRate
	opts.Discount = cfg.DefaultDiscount
	opts.AllowOversell = cfg.AllowOversell
	opts.Hooks = hooks
	opts.Logger = logger.Named("cart")
	return opts
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

func validateCartConfig(cfg config.Config) error {
	if len(cfg.Malformed) > 0 {
		return fmt.Errorf("malformed money settings: %s", strings.Join(cfg.Malformed, ", "))
	}
	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("TAX_RATE must be in [0, 1), got %s", cfg.TaxRate)
	}
	if cfg.DefaultDiscount.IsNegative() {
		return fmt.Errorf("DEFAULT_DISCOUNT must not be negative, got %s", cfg.DefaultDiscount)
	}
	return nil
}
