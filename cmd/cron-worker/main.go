package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	cartsvc "github.com/pyshop/pyshop-backend/internal/cart"
	"github.com/pyshop/pyshop-backend/internal/cron"
	"github.com/pyshop/pyshop-backend/pkg/config"
	"github.com/pyshop/pyshop-backend/pkg/db"
	"github.com/pyshop/pyshop-backend/pkg/logger"
	"github.com/pyshop/pyshop-backend/pkg/metrics"
	"github.com/pyshop/pyshop-backend/pkg/migrate"
	"github.com/pyshop/pyshop-backend/pkg/redis"
)

const lockKeyFormat = "pyshop:cron-worker:lock:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	cartRepo := cartsvc.NewRepository(dbClient.DB())

	expiryService, err := buildService(cfg, logg, redisClient, metricsCollector, "cart-expiry", cfg.Cron.ExpiryInterval, func(registry *cron.Registry) error {
		job, err := cron.NewCartExpiryJob(cartRepo, logg, metricsCollector)
		if err != nil {
			return err
		}
		registry.Register(job)
		return nil
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry cron service", err)
		os.Exit(1)
	}

	cleanupService, err := buildService(cfg, logg, redisClient, metricsCollector, "cart-cleanup", cfg.Cron.CleanupInterval, func(registry *cron.Registry) error {
		job, err := cron.NewCartCleanupJob(cartRepo, logg, metricsCollector, cfg.Cron.CleanupRetention)
		if err != nil {
			return err
		}
		registry.Register(job)
		return nil
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	metricsServer := &http.Server{
		Addr:    ":" + cfg.Cron.MetricsPort,
		Handler: promhttp.Handler(),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return expiryService.Run(groupCtx)
	})
	group.Go(func() error {
		return cleanupService.Run(groupCtx)
	})
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return metricsServer.Shutdown(context.Background())
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildService wires one cron loop with its own lock so the expiry and
// cleanup cadences stay independent across instances.
func buildService(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	metricsCollector *metrics.CronJobMetrics,
	name string,
	interval time.Duration,
	register func(*cron.Registry) error,
) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env, name), cfg.Cron.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("create %s lock: %w", name, err)
	}

	registry := cron.NewRegistry()
	if err := register(registry); err != nil {
		return nil, fmt.Errorf("register %s jobs: %w", name, err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: interval,
	})
}

func lockKey(env, name string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, name)
}
