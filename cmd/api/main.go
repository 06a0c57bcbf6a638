// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/admin"
	"github.com/carterperez-dev/pitchfork-economy/internal/app"
	"github.com/carterperez-dev/pitchfork-economy/internal/auth"
	"github.com/carterperez-dev/pitchfork-economy/internal/bootstrap"
	"github.com/carterperez-dev/pitchfork-economy/internal/config"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/discord"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/health"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
	"github.com/carterperez-dev/pitchfork-economy/internal/server"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := app.SetupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	tracing, err := core.StartTracing(ctx, cfg.Otel, cfg.App, "api")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else if tracing.Enabled() {
		logger.Info("tracing enabled", "endpoint", cfg.Otel.Endpoint)
	}

	db, err := core.NewDatabase(ctx, cfg.Database, "api")
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := core.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	if cfg.IsDevelopment() {
		created, err := auth.EnsureKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
		if err != nil {
			return err
		}
		if created {
			logger.Warn("generated development signing keys", "path", cfg.JWT.PrivateKeyPath)
		}
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT, core.SystemClock{})
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	var chatAdapter *discord.Adapter
	if cfg.Discord.Token != "" {
		chatAdapter, err = discord.New(cfg.Discord)
		if err != nil {
			return err
		}
		logger.Info("discord REST client ready", "guild_id", cfg.Discord.GuildID)
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	var publisher *notify.AMQPPublisher
	switch {
	case cfg.AMQP.URL != "":
		publisher, err = notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		if err != nil {
			return err
		}
		notifier = publisher
		logger.Info("notifications published to queue", "queue", cfg.AMQP.Queue)
	case chatAdapter != nil:
		notifier = notify.NewChatNotifier(
			chatAdapter,
			cfg.Discord.GeneralChannelID,
			cfg.Discord.AdminNotifyUserID,
			logger,
		)
	}

	svc := app.Build(app.Deps{
		Config:   cfg,
		Tx:       db,
		DB:       db.DB,
		Cache:    redis,
		Clock:    core.SystemClock{},
		Notifier: notifier,
		Logger:   logger,
	})

	var roleLister product.RoleLister
	if chatAdapter != nil {
		roleLister = chatAdapter
		svc.Users.SetAdminSource(chatAdapter)

		runner := bootstrap.NewRunner(
			chatAdapter,
			svc.Settings,
			svc.Users,
			svc.Ledger,
			logger,
		)
		runner.OnAward(func(ctx context.Context, userID string) {
			if _, err := svc.Achievements.Evaluate(ctx, userID, achievement.TypeSpecial, 0); err != nil {
				logger.Error("achievement evaluation failed", "user_id", userID, "error", err)
			}
		})
		svc.Settings.SetBootstrapper(runner)
	}

	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		jwtManager,
		svc.Users,
		auth.NewDiscordOAuth(cfg.OAuth),
		redis,
		cfg.OAuth.StateTTL,
		core.SystemClock{},
	)

	authHandler := auth.NewHandler(authSvc)
	userHandler := user.NewHandler(svc.Users)
	settingsHandler := settings.NewHandler(svc.Settings)
	ledgerHandler := ledger.NewHandler(svc.Ledger, svc.Achievements)
	achievementHandler := achievement.NewHandler(svc.Achievements)
	productHandler := product.NewHandler(svc.Products, roleLister)
	purchaseHandler := purchase.NewHandler(svc.Purchases)
	fulfillmentHandler := fulfillment.NewHandler(svc.Downloads, svc.Roles, svc.Sweeper)

	checks := []health.Check{
		{Name: "database", Checker: db},
		{Name: "redis", Checker: redis, Optional: true},
	}
	if publisher != nil {
		checks = append(checks, health.Check{
			Name:     "amqp",
			Checker:  publisher,
			Optional: true,
		})
	}
	healthHandler := health.NewHandler(checks...)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:      db.Stats,
		RedisStats:   redis.PoolStats,
		DBPing:       db.Ping,
		RedisPing:    redis.Ping,
		Ledger:       svc.Ledger,
		Users:        svc.Users,
		Achievements: svc.Achievements,
		Purchases:    svc.Purchases,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Name:     "global",
			Limit:    middleware.PerMinute(cfg.RateLimit.Requests, cfg.RateLimit.Burst),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin(svc.Users)

	purchaseLimit := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name:     "purchase",
		Limit:    middleware.PerHour(cfg.RateLimit.PurchasesPerHour, cfg.RateLimit.PurchasesPerHour),
		KeyFunc:  middleware.KeyByUser,
		FailOpen: true,
	}).Handler

	fulfillmentHandler.RegisterDownloadRoutes(router, authenticator)

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		ledgerHandler.RegisterRoutes(r, authenticator)
		ledgerHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		achievementHandler.RegisterRoutes(r, authenticator)
		achievementHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		productHandler.RegisterRoutes(r)
		productHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		purchaseHandler.RegisterRoutes(r, authenticator, purchaseLimit)
		purchaseHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		fulfillmentHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		settingsHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	go func() {
		if err := svc.Sweeper.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("token sweeper stopped", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.Workers.TokenSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n, err := authSvc.CleanupExpired(workerCtx); err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
			}
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("amqp close error", "error", err)
		}
	}

	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}
