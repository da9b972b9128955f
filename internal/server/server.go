package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"buddydesk/internal/config"
	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/domain/buddyrequest"
	"buddydesk/internal/domain/livefeed"
	"buddydesk/internal/domain/notification"
	"buddydesk/internal/domain/payment"
	"buddydesk/internal/middleware"
	"buddydesk/internal/pkg/jwt"
	"buddydesk/internal/pkg/logger"
	"buddydesk/internal/pkg/metrics"
	"buddydesk/internal/pkg/redis"
	"buddydesk/internal/pkg/response"
)

const healthTimeout = 2 * time.Second

// Options carries the infrastructure the API is built on. Redis, Reader and
// Registry are optional.
type Options struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *gorm.DB
	Reader   *gorm.DB
	Redis    *redis.Client
	Registry *prometheus.Registry
	Gateway  payment.Gateway
	Sender   notification.Sender
}

// App is the assembled API. Tests reach into the services directly.
type App struct {
	Router        *gin.Engine
	Hub           *livefeed.Hub
	Notifications *notification.Service
	Buddies       *buddy.Service
	Requests      *buddyrequest.Service
	Payments      *payment.Service
	JWT           *jwt.Service
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if opts.DB == nil {
		return nil, errors.New("database required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("payment gateway required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	sender := opts.Sender
	if sender == nil {
		sender = notification.NewLogSender(log)
	}

	lifecycleMetrics := metrics.NewLifecycle(registry)
	jwtService := jwt.New(cfg.Auth.JWTSecret, 24*time.Hour)
	hub := livefeed.NewHub()
	notifs := notification.NewService(sender, cfg.Notify.FromAddress, cfg.Notify.Timeout, log)

	buddyRepo := buddy.NewRepository(opts.DB)
	requestRepo := buddyrequest.NewRepository(opts.DB, opts.Reader)
	paymentRepo := payment.NewRepository(opts.DB)

	paymentSvc := payment.NewService(payment.Deps{
		Repo:      paymentRepo,
		Requests:  requestRepo,
		Buddies:   buddyRepo,
		Gateway:   opts.Gateway,
		KeySecret: cfg.Gateway.KeySecret,
		Currency:  cfg.Gateway.Currency,
		Timeout:   cfg.Gateway.Timeout,
		Notifier:  notifs,
		Events:    hub,
		Metrics:   lifecycleMetrics,
		Logger:    log,
	})
	requestSvc := buddyrequest.NewService(buddyrequest.Deps{
		DB:          opts.DB,
		Repo:        requestRepo,
		Buddies:     buddyRepo,
		Payments:    paymentSvc,
		Paid:        paymentRepo,
		Notifier:    notifs,
		Events:      hub,
		Prices:      payment.Catalog{Currency: cfg.Gateway.Currency},
		Metrics:     lifecycleMetrics,
		Logger:      log,
		Location:    loc,
		MaxAttempts: cfg.Matching.MaxAttempts,
	})
	buddySvc := buddy.NewService(buddyRepo, requestRepo, log)

	r := gin.New()
	r.Use(
		middleware.RequestID(log),
		middleware.ErrorLogger(log),
		middleware.AccessLog(log),
		middleware.CORS(cfg.App.CORSAllowedOrigins, cfg.App.IsProdLike()),
	)

	r.GET("/healthz", healthz(opts.DB, opts.Redis))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	writeLimit := middleware.RateLimit(middleware.RateLimitPolicy{
		Name:   "public-write",
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
	}, windowStore(opts.Redis), log)

	v1 := r.Group("/api/v1")
	{
		buddyrequest.RegisterPublicRoutes(v1, buddyrequest.NewHandler(requestSvc), writeLimit)
		payment.RegisterRoutes(v1, payment.NewHandler(paymentSvc), writeLimit)

		// The websocket handshake authenticates from the query string.
		livefeed.RegisterRoutes(v1, livefeed.NewHandler(hub, jwtService, cfg.Auth.AdminRole, log))

		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(jwtService), middleware.RequireRole(cfg.Auth.AdminRole))
		{
			buddy.RegisterAdminRoutes(admin, buddy.NewHandler(buddySvc))
			buddyrequest.RegisterAdminRoutes(admin, buddyrequest.NewHandler(requestSvc))
		}
	}

	return &App{
		Router:        r,
		Hub:           hub,
		Notifications: notifs,
		Buddies:       buddySvc,
		Requests:      requestSvc,
		Payments:      paymentSvc,
		JWT:           jwtService,
	}, nil
}

// windowStore keeps a nil client from becoming a non-nil interface.
func windowStore(client *redis.Client) middleware.WindowStore {
	if client == nil {
		return nil
	}
	return client
}

func healthz(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{"database": "ok"}
		healthy := true

		if err := database.Ping(ctx, db, healthTimeout); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if rdb != nil {
			pingCtx, cancel := context.WithTimeout(ctx, healthTimeout)
			err := rdb.Ping(pingCtx)
			cancel()
			checks["redis"] = "ok"
			if err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		if !healthy {
			response.ErrorWithDetails(c, http.StatusServiceUnavailable, "UNHEALTHY", "dependency check failed", checks)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}

// Shutdown stops background delivery. Call after the HTTP server has drained.
func (a *App) Shutdown(ctx context.Context) {
	a.Hub.Close()
	done := make(chan struct{})
	go func() {
		a.Notifications.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
