// Package bootstrap wires the coordination layer together: config, logging,
// telemetry, the cache store, the credential gateway, the engine, and the
// background services, plus the signal-driven lifecycle.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus_courier/internal/alert"
	"campus_courier/internal/auth"
	"campus_courier/internal/cache"
	"campus_courier/internal/config"
	"campus_courier/internal/core"
	"campus_courier/internal/engine"
	"campus_courier/internal/favorites"
	"campus_courier/internal/gateway"
	"campus_courier/internal/infrastructure/health"
	"campus_courier/internal/infrastructure/metrics"
	"campus_courier/internal/reconcile"
	"campus_courier/internal/remote"
	"campus_courier/internal/stream"
	"campus_courier/pkg/concurrency"
	"campus_courier/pkg/logging"
	"campus_courier/pkg/telemetry"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// App holds the wired application.
type App struct {
	Cfg        *config.Config
	Logger     core.ILogger
	Actor      core.Actor
	Store      core.Store
	Breaker    *gateway.APIBreaker
	Engine     *engine.Engine
	Favorites  *favorites.Service
	Reconciler *reconcile.Reconciler
	Stream     *stream.Subscriber // nil when disabled
	Health     *health.HealthManager
	Metrics    *metrics.Server // nil when disabled

	pool      *concurrency.WorkerPool
	telemetry *telemetry.Telemetry
	closeDB   func() error
}

// NewApp builds the full dependency graph from one config file.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logging.SetGlobalLogger(logger)

	tel, err := telemetry.Setup(cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	app := &App{
		Cfg:       cfg,
		Logger:    logger,
		telemetry: tel,
		Actor: core.Actor{
			ID:   cfg.Auth.UserID,
			Role: core.Role(cfg.Auth.Role),
		},
	}

	if err := app.wire(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) wire() error {
	cfg := a.Cfg

	switch cfg.Cache.Backend {
	case "sqlite":
		store, err := cache.NewSQLiteStore(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("cache store: %w", err)
		}
		a.Store = store
		a.closeDB = store.Close
	default:
		a.Store = cache.NewMemoryStore()
	}

	session := auth.NewSession(
		cfg.Remote.BaseURL,
		string(cfg.Auth.Token),
		string(cfg.Auth.RefreshToken),
		cfg.RemoteTimeout(),
		a.Logger,
	)

	a.Breaker = gateway.NewAPIBreaker()
	gw := gateway.New(cfg.Remote.BaseURL, cfg.RemoteTimeout(), session, a.Breaker, a.Logger)
	api := remote.NewClient(gw, a.Logger)

	a.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "sync",
		MaxWorkers:  cfg.Concurrency.SyncPoolSize,
		MaxCapacity: cfg.Concurrency.SyncPoolBuffer,
		NonBlocking: true,
	}, a.Logger)

	a.Reconciler = reconcile.NewReconciler(a.Logger, cfg.ReconcileInterval())

	limiter := rate.NewLimiter(rate.Limit(cfg.Sync.RefreshRatePerSecond), cfg.Sync.RefreshBurst)
	a.Engine = engine.New(api, a.Store, a.pool, limiter, a.Reconciler, a.Logger)
	a.Favorites = favorites.NewService(api, a.Store, a.pool, a.Actor, a.Logger)

	actor := a.Actor
	a.Reconciler.Register("open-orders", func(ctx context.Context) error {
		orders, err := api.ListOpenOrders(ctx)
		if err != nil {
			return err
		}
		return reconcile.ReplaceAll(ctx, a.Store, cache.KeyOpenOrders, reconcile.OrdersByID(orders))
	})
	a.Reconciler.Register("user-orders", func(ctx context.Context) error {
		orders, err := api.ListUserOrders(ctx, actor)
		if err != nil {
			return err
		}
		return reconcile.ReplaceAll(ctx, a.Store, cache.KeyOrdersFor(actor.Role), reconcile.OrdersByID(orders))
	})
	a.Favorites.RegisterPasses(a.Reconciler)

	if cfg.Remote.StreamEnabled {
		a.Stream = stream.NewSubscriber(cfg.Remote.BaseURL, session, a.Reconciler, a.Logger)
	}

	alerts := alert.NewAlertManager(a.Logger)
	if cfg.Alerts.SlackWebhookURL != "" {
		alerts.AddChannel(alert.NewSlackChannel(string(cfg.Alerts.SlackWebhookURL)))
	}
	if cfg.Alerts.TelegramBotToken != "" && cfg.Alerts.TelegramChatID != "" {
		alerts.AddChannel(alert.NewTelegramChannel(string(cfg.Alerts.TelegramBotToken), cfg.Alerts.TelegramChatID))
	}
	a.Breaker.SetOnTrip(func(reason string) {
		alerts.Alert(context.Background(), "Remote API disabled", reason, alert.Critical, map[string]string{
			"environment": cfg.App.Environment,
		})
	})

	a.Health = health.NewHealthManager(a.Logger)
	a.Health.Register("remote_api", func() error {
		if open, _, reason := a.Breaker.Status(); open {
			return fmt.Errorf("api disabled: %s", reason)
		}
		return nil
	})
	a.Health.Register("cache", func() error {
		_, _, err := a.Store.Get(context.Background(), cache.KeyOpenOrders)
		return err
	})

	if cfg.Telemetry.EnableMetrics {
		a.Metrics = metrics.NewServer(cfg.Telemetry.MetricsPort, a.Health, a.Logger)
	}
	return nil
}

// Runner is an interface for components that can be run and stopped gracefully.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error
}

// Run starts the background services and blocks until a termination signal
// or a service failure.
func (a *App) Run(extra ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runners := []Runner{a.Reconciler}
	if a.Stream != nil {
		runners = append(runners, a.Stream)
	}
	runners = append(runners, extra...)

	if a.Metrics != nil {
		a.Metrics.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			if err := r.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			return r.Stop()
		})
	}

	a.Logger.Info("Application started", "environment", a.Cfg.App.Environment)
	err := g.Wait()
	a.shutdown()

	if err != nil && err != context.Canceled {
		a.Logger.Error("Application stopped with error", "error", err)
		return err
	}
	a.Logger.Info("Application shut down gracefully")
	return nil
}

func (a *App) shutdown() {
	if a.Metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Metrics.Stop(ctx); err != nil {
			a.Logger.Warn("Metrics server shutdown failed", "error", err)
		}
		cancel()
	}
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.closeDB != nil {
		if err := a.closeDB(); err != nil {
			a.Logger.Warn("Cache store close failed", "error", err)
		}
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.Logger.Warn("Telemetry shutdown failed", "error", err)
		}
		cancel()
	}
}
