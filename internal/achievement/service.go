// AngelaMos | 2026
// service.go

package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
)

type Service struct {
	tx       core.Transactor
	db       core.DBTX
	newRepo  func(core.DBTX) Repository
	ledger   *ledger.Service
	notifier notify.Notifier
	retries  int
}

func NewService(
	tx core.Transactor,
	db core.DBTX,
	newRepo func(core.DBTX) Repository,
	ledgerSvc *ledger.Service,
	notifier notify.Notifier,
	retries int,
) *Service {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Service{
		tx:       tx,
		db:       db,
		newRepo:  newRepo,
		ledger:   ledgerSvc,
		notifier: notifier,
		retries:  retries,
	}
}

func (s *Service) List(ctx context.Context) ([]Achievement, error) {
	return s.newRepo(s.db).List(ctx)
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Held, error) {
	return s.newRepo(s.db).ListForUser(ctx, userID)
}

func (s *Service) Create(ctx context.Context, a *Achievement) error {
	if !a.Type.Valid() {
		return fmt.Errorf("achievement type %q: %w", a.Type, core.ErrInvalidInput)
	}
	if a.Requirement < 1 || a.Points < 0 {
		return fmt.Errorf("achievement thresholds: %w", core.ErrInvalidInput)
	}
	return s.newRepo(s.db).Create(ctx, a)
}

// Progress implements ledger.AchievementProgress.
func (s *Service) Progress(ctx context.Context, userID string) (int, int, int64, error) {
	return s.newRepo(s.db).Progress(ctx, userID)
}

// Evaluate awards every achievement of type t the member now qualifies
// for. count is the caller's view of the counter and only short-circuits
// the common case; eligibility is decided on the counter re-read under
// the user lock.
func (s *Service) Evaluate(ctx context.Context, userID string, t Type, count int) ([]Award, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("achievement type %q: %w", t, core.ErrInvalidInput)
	}

	if count > 0 {
		candidates, err := s.newRepo(s.db).Eligible(ctx, userID, t, count)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}
	}

	return s.run(ctx, userID, []Type{t})
}

// AfterOneShot implements ledger.AchievementProgress.
func (s *Service) AfterOneShot(ctx context.Context, userID string) error {
	_, err := s.Evaluate(ctx, userID, TypeSpecial, 0)
	return err
}

// EvaluateAll catches up on every type, including achievements defined
// after the counters were earned.
func (s *Service) EvaluateAll(ctx context.Context, userID string) ([]Award, error) {
	return s.run(ctx, userID, Types)
}

func (s *Service) run(ctx context.Context, userID string, types []Type) ([]Award, error) {
	var awards []Award

	err := core.RetryTx(ctx, s.tx, s.retries, func(db core.DBTX) error {
		var err error
		awards, err = s.awardIn(ctx, db, userID, types)
		return err
	})
	if errors.Is(err, core.ErrEconomyDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, a := range awards {
		slog.Info("achievement awarded",
			"user_id", userID,
			"achievement", a.Achievement.Name,
			"points", a.Achievement.Points,
		)
		notify.Send(ctx, s.notifier, notify.AchievementAwarded(userID, "", notify.AchievementPayload{
			Name:        a.Achievement.Name,
			Description: a.Achievement.Description,
			Points:      a.Achievement.Points,
			Balance:     a.Balance,
		}))
	}

	return awards, nil
}

func (s *Service) awardIn(
	ctx context.Context,
	db core.DBTX,
	userID string,
	types []Type,
) ([]Award, error) {
	t := s.ledger.Bind(db)
	repo := s.newRepo(db)

	u, err := t.LockUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var awards []Award
	for _, typ := range types {
		eligible, err := repo.Eligible(ctx, userID, typ, Counter(u, typ))
		if err != nil {
			return nil, err
		}

		for _, a := range eligible {
			inserted, err := repo.Award(ctx, userID, a.ID)
			if err != nil {
				return nil, err
			}
			if !inserted {
				continue
			}

			balance := u.Balance
			if a.Points > 0 {
				res, err := t.Credit(ctx, ledger.CreditRequest{
					UserID: userID,
					Amount: a.Points,
					Reason: ledger.AchievementReason(a.Name),
				})
				if err != nil {
					return nil, err
				}
				balance = res.Balance
				u.Balance = res.Balance
			}

			awards = append(awards, Award{Achievement: a, Balance: balance})
		}
	}

	return awards, nil
}
