// AngelaMos | 2026
// service.go

package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

// Bootstrapper backfills one-shot bonuses after the first enable. Start
// must return promptly; the work runs in the background.
type Bootstrapper interface {
	Start(ctx context.Context)
}

type ToggleResult struct {
	Settings         *Settings
	Changed          bool
	FirstTime        bool
	BootstrapStarted bool
}

type Service struct {
	tx          core.Transactor
	db          core.DBTX
	newRepo     func(core.DBTX) Repository
	clock       core.Clock
	chatEnabled bool
	bootstrap   Bootstrapper
}

func NewService(
	tx core.Transactor,
	db core.DBTX,
	newRepo func(core.DBTX) Repository,
	clock core.Clock,
	chatEnabled bool,
) *Service {
	return &Service{
		tx:          tx,
		db:          db,
		newRepo:     newRepo,
		clock:       clock,
		chatEnabled: chatEnabled,
	}
}

func (s *Service) SetBootstrapper(b Bootstrapper) {
	s.bootstrap = b
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.newRepo(s.db).Get(ctx)
}

func (s *Service) UpdateConfig(
	ctx context.Context,
	req UpdateConfigRequest,
) (*Settings, error) {
	var out *Settings

	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		repo := s.newRepo(tx)

		cur, err := repo.GetForUpdate(ctx)
		if err != nil {
			return err
		}

		if req.VerifiedRoleID != nil {
			cur.VerifiedRoleID = *req.VerifiedRoleID
		}
		if req.OnboardingRoleIDs != nil {
			cur.OnboardingRoleIDs = dedupe(req.OnboardingRoleIDs)
		}
		if req.VerifiedBonusPoints != nil {
			if *req.VerifiedBonusPoints <= 0 {
				return fmt.Errorf("verified bonus must be positive: %w", core.ErrInvalidInput)
			}
			cur.VerifiedBonusPoints = *req.VerifiedBonusPoints
		}
		if req.OnboardingBonusPoints != nil {
			if *req.OnboardingBonusPoints <= 0 {
				return fmt.Errorf("onboarding bonus must be positive: %w", core.ErrInvalidInput)
			}
			cur.OnboardingBonusPoints = *req.OnboardingBonusPoints
		}
		cur.RolesConfigured = cur.VerifiedRoleID != ""

		if err := repo.Save(ctx, cur); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Enable turns earning on. The first enable ever latches first_time_enabled
// in the same transaction and then starts the bootstrap backfill.
func (s *Service) Enable(ctx context.Context) (*ToggleResult, error) {
	result := &ToggleResult{}

	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		repo := s.newRepo(tx)

		cur, err := repo.GetForUpdate(ctx)
		if err != nil {
			return err
		}

		if cur.Enabled && cur.FirstTimeEnabled {
			result.Settings = cur
			return nil
		}

		firstTime := !cur.FirstTimeEnabled
		if firstTime && !s.chatEnabled {
			return fmt.Errorf("first-time enable needs the chat surface: %w", core.ErrChatUnavailable)
		}

		updated, err := repo.SetEnabled(ctx, true, s.clock.Now())
		if err != nil {
			return err
		}

		result.Settings = updated
		result.Changed = true
		result.FirstTime = firstTime
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.FirstTime && s.bootstrap != nil {
		slog.Info("economy enabled for the first time, starting bootstrap")
		s.bootstrap.Start(context.WithoutCancel(ctx))
		result.BootstrapStarted = true
	}

	return result, nil
}

func (s *Service) Disable(ctx context.Context) (*ToggleResult, error) {
	result := &ToggleResult{}

	err := s.tx.WithTx(ctx, func(tx core.DBTX) error {
		repo := s.newRepo(tx)

		cur, err := repo.GetForUpdate(ctx)
		if err != nil {
			return err
		}

		if !cur.Enabled {
			result.Settings = cur
			return nil
		}

		updated, err := repo.SetEnabled(ctx, false, s.clock.Now())
		if err != nil {
			return err
		}

		result.Settings = updated
		result.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func dedupe(ids []string) RoleIDs {
	seen := make(map[string]struct{}, len(ids))
	out := make(RoleIDs, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
