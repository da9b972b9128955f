package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buddydesk/internal/config"
	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/domain/buddyrequest"
	"buddydesk/internal/domain/notification"
	"buddydesk/internal/domain/payment"
	"buddydesk/internal/domain/sweeper"
	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/metrics"
	"buddydesk/internal/pkg/redis"
	"buddydesk/internal/server"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	once := flag.Bool("once", false, "run a single sweep and exit")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address (disabled when empty)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "sweeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"once": *once,
	})

	loc, err := cfg.App.Location()
	requireResource(ctx, logg, "timezone", err)

	db, err := database.Connect(cfg.DB)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if cfg.DB.AutoMigrate {
		requireResource(ctx, logg, "schema", server.PrepareSchema(ctx, db, cfg.DB.URL))
	}

	reader, err := database.ConnectReplica(cfg.DB)
	requireResource(ctx, logg, "database replica", err)

	var lock sweeper.Lock
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis)
		requireResource(ctx, logg, "redis", err)
		defer redisClient.Close()

		lock, err = sweeper.NewRedisLock(redisClient, redisClient.LockKey("sweeper"), cfg.Sweeper.LockTTL)
		requireResource(ctx, logg, "sweeper lock", err)
	} else {
		logg.Warn(ctx, "REDIS_URL not set, sweeper lock is process-local")
		lock = sweeper.NewLocalLock()
	}

	registry := prometheus.NewRegistry()
	notifs := notification.NewService(notification.NewLogSender(logg), cfg.Notify.FromAddress, cfg.Notify.Timeout, logg)
	defer notifs.Wait()

	requestRepo := buddyrequest.NewRepository(db, reader)
	paymentRepo := payment.NewRepository(db)
	requests := buddyrequest.NewService(buddyrequest.Deps{
		DB:          db,
		Repo:        requestRepo,
		Buddies:     buddy.NewRepository(db),
		Paid:        paymentRepo,
		Notifier:    notifs,
		Prices:      payment.Catalog{Currency: cfg.Gateway.Currency},
		Metrics:     metrics.NewLifecycle(registry),
		Logger:      logg,
		Location:    loc,
		MaxAttempts: cfg.Matching.MaxAttempts,
	})

	expiry, err := sweeper.NewExpiryJob(sweeper.ExpiryJobParams{
		Logger:     logg,
		Requests:   requestRepo,
		Payments:   paymentRepo,
		Canceller:  requests,
		PendingTTL: cfg.Sweeper.PendingTTL,
		Location:   loc,
	})
	requireResource(ctx, logg, "expiry job", err)

	svc, err := sweeper.NewService(sweeper.ServiceParams{
		Logger:   logg,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(registry),
		Interval: cfg.Sweeper.Interval,
		Jobs:     []sweeper.Job{expiry},
	})
	requireResource(ctx, logg, "sweeper service", err)

	if *metricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	if *once {
		if err := svc.RunOnce(ctx); err != nil {
			logg.Error(ctx, "sweep failed", err)
			notifs.Wait()
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "sweeper started")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "sweeper stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
