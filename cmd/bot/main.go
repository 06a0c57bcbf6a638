// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/app"
	"github.com/carterperez-dev/pitchfork-economy/internal/bootstrap"
	"github.com/carterperez-dev/pitchfork-economy/internal/bot"
	"github.com/carterperez-dev/pitchfork-economy/internal/config"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/discord"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("bot error", "error", err)
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

	logger := app.SetupLogger(cfg.Log).With("process", "bot")
	slog.SetDefault(logger)

	if cfg.Discord.Token == "" {
		logger.Info("DISCORD_TOKEN not set, chat surface disabled")
		return nil
	}

	tracing, err := core.StartTracing(ctx, cfg.Otel, cfg.App, "bot")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	db, err := core.NewDatabase(ctx, cfg.Database, "bot")
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := redis.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}()

	loc, err := time.LoadLocation(cfg.Economy.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Economy.Timezone, err)
	}

	adapter, err := discord.New(cfg.Discord)
	if err != nil {
		return err
	}

	notifier := notify.NewChatNotifier(
		adapter,
		cfg.Discord.GeneralChannelID,
		cfg.Discord.AdminNotifyUserID,
		logger,
	)

	clock := core.SystemClock{}
	svc := app.Build(app.Deps{
		Config:   cfg,
		Tx:       db,
		DB:       db.DB,
		Cache:    redis,
		Clock:    clock,
		Notifier: notifier,
		Logger:   logger,
	})
	svc.Users.SetAdminSource(adapter)

	runner := bootstrap.NewRunner(adapter, svc.Settings, svc.Users, svc.Ledger, logger)
	runner.OnAward(func(ctx context.Context, userID string) {
		if _, err := svc.Achievements.Evaluate(ctx, userID, achievement.TypeSpecial, 0); err != nil {
			logger.Error("achievement evaluation failed", "user_id", userID, "error", err)
		}
	})
	svc.Settings.SetBootstrapper(runner)

	roleWorker := fulfillment.NewRoleWorker(
		db,
		fulfillment.NewRepository,
		adapter,
		notifier,
		clock,
		app.RoleWorkerConfig(cfg.Workers, cfg.Discord),
		logger,
	)

	birthdays, err := bot.NewBirthdayAnnouncer(
		svc.Users,
		svc.Ledger,
		adapter,
		bot.BirthdayConfig{
			ChannelID: cfg.Discord.GeneralChannelID,
			At:        cfg.Economy.BirthdayCheckTime,
			Location:  loc,
		},
		clock,
		logger,
	)
	if err != nil {
		return err
	}

	ingestor := bot.NewIngestor(
		svc.Users,
		svc.Ledger,
		svc.Achievements,
		svc.Settings,
		adapter,
		notifier,
		bot.Emojis{
			CampusPhoto:  cfg.Discord.CampusPhotoEmoji,
			DailyEngage:  cfg.Discord.DailyEngageEmoji,
			DepositCheck: cfg.Discord.DepositCheckEmoji,
		},
		logger,
	)
	ingestor.SetRoleGuard(bot.RoleGuard{
		Restricted: cfg.Discord.RestrictedRoleID,
		BlockedBy:  cfg.Discord.UnverifiedRoleID,
	})
	commands := bot.NewCommands(svc.Users, svc.Ledger, svc.Achievements, svc.Settings, logger)

	gateway := discord.NewGateway(adapter, ingestor, commands, cfg.Discord.RegisterCommands, logger)
	gateway.SetPresence(cfg.Discord.PresenceStatusText)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gateway.Open(gctx)
	})
	g.Go(func() error {
		return roleWorker.Run(gctx)
	})
	g.Go(func() error {
		return birthdays.Run(gctx)
	})

	if cfg.AMQP.URL != "" {
		consumer := notify.NewConsumer(notify.ConsumerConfig{
			URL:      cfg.AMQP.URL,
			Queue:    cfg.AMQP.Queue,
			Prefetch: cfg.AMQP.Prefetch,
			Workers:  cfg.AMQP.Workers,
		}, notifier, logger)

		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	logger.Info("bot started", "guild_id", cfg.Discord.GuildID)

	err = g.Wait()
	runner.Wait()

	if shutErr := tracing.Shutdown(context.Background()); shutErr != nil {
		logger.Error("tracing shutdown error", "error", shutErr)
	}

	logger.Info("bot stopped")
	return err
}
