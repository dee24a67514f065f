package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/uniedit/paycore/internal/infra/events"
	"github.com/uniedit/paycore/internal/infra/locker"
	"github.com/uniedit/paycore/internal/infra/persistence"
	"github.com/uniedit/paycore/internal/module/coordinator"
	"github.com/uniedit/paycore/internal/module/coordinator/plugin"
	"github.com/uniedit/paycore/internal/module/coordinator/provider"
	"github.com/uniedit/paycore/internal/shared/cache"
	"github.com/uniedit/paycore/internal/shared/config"
	"github.com/uniedit/paycore/internal/shared/database"
	"github.com/uniedit/paycore/internal/shared/logger"
	"github.com/uniedit/paycore/internal/shared/metrics"
	"github.com/uniedit/paycore/internal/shared/middleware"
)

// App wires the coordination service together: gateways, engine, store,
// locker, event bus and the HTTP surface.
type App struct {
	config  *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	db      *gorm.DB
	redis   redis.UniversalClient
	router  *gin.Engine
}

// New builds the application from configuration.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{
		config:  cfg,
		logger:  log,
		metrics: metrics.New("paycore"),
	}

	a.db, err = database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	store := persistence.NewInstructionRepository(a.db, a.metrics)
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional; without it instruction locking falls back to
	// process-local locks.
	var lock coordinator.Locker
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, using in-process locks", zap.Error(err))
		lock = locker.NewMemoryLocker()
	} else {
		a.redis = redisClient
		lock = locker.NewRedisLocker(redisClient)
	}

	bus := events.NewBus(log)
	notifier := events.NewBusNotifier(bus)

	registry, err := a.buildRegistry()
	if err != nil {
		return nil, err
	}

	engine := coordinator.NewCoordinator(registry, notifier, log)
	service := coordinator.NewService(engine, store, lock, a.metrics, log)
	handler := coordinator.NewHandler(service)

	a.router = a.setupRouter(handler)
	return a, nil
}

// buildRegistry assembles the gateway plugins named in configuration, each
// behind a circuit breaker.
func (a *App) buildRegistry() (*coordinator.Registry, error) {
	var plugins []plugin.Plugin

	if a.config.Stripe.Enabled {
		stripe := provider.NewStripePlugin(&provider.StripeConfig{
			APIKey: a.config.Stripe.APIKey,
		})
		plugins = append(plugins, provider.NewBreakerPlugin(stripe, "stripe", a.metrics, a.logger))
	}
	if a.config.Alipay.Enabled {
		alipay, err := provider.NewAlipayPlugin(&provider.AlipayConfig{
			AppID:           a.config.Alipay.AppID,
			PrivateKey:      a.config.Alipay.PrivateKey,
			AlipayPublicKey: a.config.Alipay.AlipayPublicKey,
			IsProd:          a.config.Alipay.IsProd,
		})
		if err != nil {
			return nil, fmt.Errorf("init alipay: %w", err)
		}
		plugins = append(plugins, provider.NewBreakerPlugin(alipay, "alipay", a.metrics, a.logger))
	}

	if len(plugins) == 0 {
		return nil, fmt.Errorf("no payment gateway enabled")
	}
	return coordinator.NewRegistry(plugins...), nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter(handler *coordinator.Handler) *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)

	return r
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Stop releases held connections.
func (a *App) Stop() {
	if a.redis != nil {
		if err := cache.Close(a.redis); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
