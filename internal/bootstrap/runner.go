// AngelaMos | 2026
// runner.go

// Package bootstrap backfills role bonuses for members who already held
// the configured roles when the economy was first enabled.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/pitchfork-economy/internal/chat"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

// SettingsReader is the slice of settings.Service the runner needs.
type SettingsReader interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type UserEnsurer interface {
	Ensure(ctx context.Context, p user.Profile) (*user.User, error)
}

type BonusApplier interface {
	ApplyRoleBonus(ctx context.Context, userID string, kind ledger.BonusKind, bypass bool) (ledger.Result, error)
}

type Report struct {
	Members        int `json:"members"`
	Awarded        int `json:"awarded"`
	AlreadyApplied int `json:"already_applied"`
	Failed         int `json:"failed"`
}

func (r *Report) add(o Report) {
	r.Members += o.Members
	r.Awarded += o.Awarded
	r.AlreadyApplied += o.AlreadyApplied
	r.Failed += o.Failed
}

type Runner struct {
	chat     chat.Adapter
	settings SettingsReader
	users    UserEnsurer
	ledger   BonusApplier
	logger   *slog.Logger
	onAward  func(ctx context.Context, userID string)

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func NewRunner(
	adapter chat.Adapter,
	settingsReader SettingsReader,
	users UserEnsurer,
	bonuses BonusApplier,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		chat:     adapter,
		settings: settingsReader,
		users:    users,
		ledger:   bonuses,
		logger:   logger.With("component", "bootstrap"),
	}
}

// OnAward registers a callback run after each bonus that was applied.
func (r *Runner) OnAward(fn func(ctx context.Context, userID string)) {
	r.onAward = fn
}

// Start runs the backfill in the background. A second Start while one is
// in flight is ignored.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.Info("bootstrap already running")
		return
	}
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
		}()

		if _, err := r.Run(ctx); err != nil {
			r.logger.Error("bootstrap failed", "error", err)
		}
	}()
}

// Wait blocks until a background run started by Start has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run applies the verified and onboarding bonuses to every current holder
// of those roles. Bonuses are one-shot, so running it again is harmless.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	ctx, span := core.StartSpan(ctx, "bootstrap.run")
	defer span.End()

	var report Report

	if r.chat == nil {
		return report, core.ErrChatUnavailable
	}

	st, err := r.settings.Get(ctx)
	if err != nil {
		return report, fmt.Errorf("load settings: %w", err)
	}

	r.logger.Info("bootstrap started",
		"verified_role", st.VerifiedRoleID,
		"onboarding_roles", len(st.OnboardingRoleIDs),
	)

	if st.VerifiedRoleID != "" {
		rep, err := r.applyRole(ctx, st.VerifiedRoleID, ledger.BonusVerified)
		report.add(rep)
		if err != nil {
			return report, err
		}
	}

	for _, roleID := range st.OnboardingRoleIDs {
		rep, err := r.applyRole(ctx, roleID, ledger.BonusOnboarding)
		report.add(rep)
		if err != nil {
			return report, err
		}
	}

	span.SetAttributes(
		attribute.Int("bootstrap.members", report.Members),
		attribute.Int("bootstrap.awarded", report.Awarded),
	)

	r.logger.Info("bootstrap finished",
		"members", report.Members,
		"awarded", report.Awarded,
		"already_applied", report.AlreadyApplied,
		"failed", report.Failed,
	)

	return report, nil
}

func (r *Runner) applyRole(ctx context.Context, roleID string, kind ledger.BonusKind) (Report, error) {
	var report Report

	members, err := r.chat.MembersWithRole(ctx, roleID)
	if err != nil {
		return report, fmt.Errorf("list members with role %s: %w", roleID, err)
	}

	for _, m := range members {
		if m.Bot {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Members++

		if _, err := r.users.Ensure(ctx, user.Profile{
			ID:        m.UserID,
			Username:  m.Username,
			AvatarURL: m.AvatarURL,
		}); err != nil {
			report.Failed++
			r.logger.Error("ensure user failed", "user_id", m.UserID, "error", err)
			continue
		}

		res, err := r.ledger.ApplyRoleBonus(ctx, m.UserID, kind, true)
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			return report, fmt.Errorf("%s bonus: %w", kind, err)
		case err != nil:
			report.Failed++
			r.logger.Error("apply role bonus failed",
				"user_id", m.UserID,
				"kind", kind,
				"error", err,
			)
		case res.Applied:
			report.Awarded++
			if r.onAward != nil {
				r.onAward(ctx, m.UserID)
			}
		default:
			report.AlreadyApplied++
		}
	}

	return report, nil
}
