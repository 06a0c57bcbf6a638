// AngelaMos | 2026
// birthday.go

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

type BirthdayConfig struct {
	ChannelID string
	At        string
	Location  *time.Location
}

// BirthdayAnnouncer gifts and congratulates members once a day at a fixed
// local time.
type BirthdayAnnouncer struct {
	users     *user.Service
	ledger    *ledger.Service
	chat      chat.Adapter
	channelID string
	at        string
	schedule  *cron.SpecSchedule
	loc       *time.Location
	clock     core.Clock
	logger    *slog.Logger
}

func NewBirthdayAnnouncer(
	users *user.Service,
	ledgerSvc *ledger.Service,
	adapter chat.Adapter,
	cfg BirthdayConfig,
	clock core.Clock,
	logger *slog.Logger,
) (*BirthdayAnnouncer, error) {
	hour, minute, err := ParseClock(cfg.At)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	schedule, err := dailyAt(hour, minute, loc)
	if err != nil {
		return nil, err
	}

	return &BirthdayAnnouncer{
		users:     users,
		ledger:    ledgerSvc,
		chat:      adapter,
		channelID: cfg.ChannelID,
		at:        fmt.Sprintf("%02d:%02d", hour, minute),
		schedule:  schedule,
		loc:       loc,
		clock:     clock,
		logger:    logger.With("component", "birthday_announcer"),
	}, nil
}

// ParseClock reads an "HH:MM" wall-clock time.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("birthday check time %q: %w", s, core.ErrInvalidInput)
	}
	return t.Hour(), t.Minute(), nil
}

func dailyAt(hour, minute int, loc *time.Location) (*cron.SpecSchedule, error) {
	parsed, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return nil, fmt.Errorf("birthday schedule: %w", err)
	}
	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("birthday schedule: unexpected %T", parsed)
	}
	spec.Location = loc
	return spec, nil
}

// NextRun is the first scheduled instant strictly after now.
func (b *BirthdayAnnouncer) NextRun(now time.Time) time.Time {
	return b.schedule.Next(now)
}

// Run fires Announce on the daily schedule until ctx is done. A run that
// overlaps the previous one is skipped.
func (b *BirthdayAnnouncer) Run(ctx context.Context) error {
	logger := cronLogger{b.logger}
	c := cron.New(
		cron.WithLocation(b.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(b.schedule, cron.FuncJob(func() {
		if _, err := b.Announce(ctx, b.clock.Now()); err != nil && ctx.Err() == nil {
			b.logger.Error("birthday announcement failed", "error", err)
		}
	}))

	b.logger.Info("birthday announcer started",
		"at", b.at,
		"timezone", b.loc.String(),
		"next_run", b.NextRun(b.clock.Now()),
	)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	b.logger.Info("birthday announcer stopped")
	return nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron "+msg, append(keysAndValues, "error", err)...)
}

// Announce gifts everyone whose birthday is today and posts one message
// naming those who were newly gifted. February 29 birthdays are celebrated
// on February 28 in common years.
func (b *BirthdayAnnouncer) Announce(ctx context.Context, now time.Time) ([]string, error) {
	local := now.In(b.loc)
	month, day := int(local.Month()), local.Day()

	members, err := b.users.BirthdaysOn(ctx, month, day)
	if err != nil {
		return nil, err
	}
	if month == 2 && day == 28 && !isLeap(local.Year()) {
		leap, err := b.users.BirthdaysOn(ctx, 2, 29)
		if err != nil {
			return nil, err
		}
		members = append(members, leap...)
	}

	var gifted []string
	for _, m := range members {
		res, err := b.ledger.GiftBirthday(ctx, m.ID, local.Year())
		if err != nil {
			b.logger.Warn("birthday gift failed", "user_id", m.ID, "error", err)
			continue
		}
		if res.Applied {
			gifted = append(gifted, m.ID)
		}
	}

	if len(gifted) == 0 {
		return nil, nil
	}

	mentions := make([]string, 0, len(gifted))
	for _, id := range gifted {
		mentions = append(mentions, "<@"+id+">")
	}

	err = b.chat.SendChannel(ctx, b.channelID, chat.Message{Embed: &chat.Embed{
		Title: "Happy Birthday!",
		Description: fmt.Sprintf(
			"Happy birthday to %s! Enjoy %d bonus points.",
			strings.Join(mentions, ", "), limiter.BirthdayGiftAmount,
		),
		Color:  chat.ColorPurple,
		Footer: footer,
	}})
	if err != nil {
		return gifted, fmt.Errorf("post birthday message: %w", err)
	}

	b.logger.Info("birthdays announced", "count", len(gifted))
	return gifted, nil
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
