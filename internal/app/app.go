// AngelaMos | 2026
// app.go

// Package app builds the service graph shared by the API and bot
// processes on top of one database and cache.
package app

import (
	"log/slog"
	"os"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/config"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

type Deps struct {
	Config   *config.Config
	Tx       core.Transactor
	DB       core.DBTX
	Cache    core.Cache
	Clock    core.Clock
	Notifier notify.Notifier
	Logger   *slog.Logger
}

type Services struct {
	Users        *user.Service
	Settings     *settings.Service
	Ledger       *ledger.Service
	Achievements *achievement.Service
	Products     *product.Service
	Purchases    *purchase.Coordinator
	Downloads    *fulfillment.DownloadService
	Roles        *fulfillment.RoleService
	Sweeper      *fulfillment.TokenSweeper
}

func Build(d Deps) *Services {
	cfg := d.Config
	notifier := d.Notifier
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}

	users := user.NewService(user.NewRepository(d.DB), d.Cache, cfg.Economy.LeaderboardTTL)

	settingsSvc := settings.NewService(
		d.Tx,
		d.DB,
		settings.NewRepository,
		d.Clock,
		cfg.Discord.Token != "",
	)

	ledgerSvc := ledger.NewService(
		d.Tx,
		d.DB,
		ledger.NewRepository,
		settings.NewRepository,
		d.Clock,
		cfg.Economy.LedgerRetries,
	)

	achievements := achievement.NewService(
		d.Tx,
		d.DB,
		achievement.NewRepository,
		ledgerSvc,
		notifier,
		cfg.Economy.LedgerRetries,
	)

	downloads := fulfillment.NewDownloadService(
		d.DB,
		fulfillment.NewRepository,
		d.Clock,
		fulfillment.DownloadConfig{
			UploadDir: cfg.Download.UploadDir,
			TokenTTL:  cfg.Download.TokenTTL,
			MaxUses:   cfg.Download.MaxUses,
		},
	)
	roles := fulfillment.NewRoleService(d.DB, fulfillment.NewRepository)

	purchases := purchase.NewCoordinator(
		d.Tx,
		d.DB,
		purchase.NewRepository,
		product.NewRepository,
		ledgerSvc,
		downloads,
		roles,
		notifier,
		purchase.Config{
			Closed:  cfg.Economy.PurchasesClosed,
			Retries: cfg.Economy.LedgerRetries,
		},
	)

	sweeper := fulfillment.NewTokenSweeper(
		d.DB,
		fulfillment.NewRepository,
		d.Clock,
		cfg.Workers.TokenSweepInterval,
		cfg.Download.Retention,
		d.Logger,
	)

	return &Services{
		Users:        users,
		Settings:     settingsSvc,
		Ledger:       ledgerSvc,
		Achievements: achievements,
		Products:     product.NewService(product.NewRepository(d.DB), d.Clock),
		Purchases:    purchases,
		Downloads:    downloads,
		Roles:        roles,
		Sweeper:      sweeper,
	}
}

// RoleWorkerConfig maps the worker section of the config file.
func RoleWorkerConfig(cfg config.WorkersConfig, discord config.DiscordConfig) fulfillment.RoleWorkerConfig {
	return fulfillment.RoleWorkerConfig{
		Interval:       cfg.RoleInterval,
		Batch:          cfg.RoleBatch,
		Lease:          cfg.RoleLease,
		MaxAttempts:    cfg.RoleMaxAttempts,
		BackoffBase:    cfg.RoleBackoffBase,
		BackoffMax:     cfg.RoleBackoffMax,
		CallsPerSecond: cfg.RoleCallsPerSecond,
		CallTimeout:    discord.RequestTimeout,
	}
}

// SetupLogger builds the process logger from the log section.
func SetupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
