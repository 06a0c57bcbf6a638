// AngelaMos | 2026
// service.go

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

const (
	giveAllBatch   = 200
	historyDefault = 50
)

// AchievementProgress supplies the achievement side of the limits view
// and runs the special track after a one-shot grant lands.
type AchievementProgress interface {
	Progress(ctx context.Context, userID string) (held, total int, unearned int64, err error)
	AfterOneShot(ctx context.Context, userID string) error
}

type Service struct {
	tx          core.Transactor
	db          core.DBTX
	newRepo     func(core.DBTX) Repository
	newSettings func(core.DBTX) settings.Repository
	clock       core.Clock
	retries     int
}

func NewService(
	tx core.Transactor,
	db core.DBTX,
	newRepo func(core.DBTX) Repository,
	newSettings func(core.DBTX) settings.Repository,
	clock core.Clock,
	retries int,
) *Service {
	return &Service{
		tx:          tx,
		db:          db,
		newRepo:     newRepo,
		newSettings: newSettings,
		clock:       clock,
		retries:     retries,
	}
}

// Bind exposes the ledger inside a transaction the caller already holds.
func (s *Service) Bind(tx core.DBTX) *Tx {
	return &Tx{
		repo:     s.newRepo(tx),
		settings: s.newSettings(tx),
		clock:    s.clock,
	}
}

func (s *Service) Clock() core.Clock {
	return s.clock
}

// Run executes fn in its own transaction, retrying on lock contention.
func (s *Service) Run(ctx context.Context, fn func(t *Tx) error) error {
	return core.RetryTx(ctx, s.tx, s.retries, func(db core.DBTX) error {
		return fn(s.Bind(db))
	})
}

func (s *Service) result(
	ctx context.Context,
	op func(ctx context.Context, t *Tx) (Result, error),
) (Result, error) {
	var res Result
	err := s.Run(ctx, func(t *Tx) error {
		var opErr error
		res, opErr = op(ctx, t)
		return opErr
	})
	if errors.Is(err, core.ErrDuplicateKey) {
		return Result{Applied: false, Balance: res.Balance}, nil
	}
	return res, err
}

func (s *Service) Credit(ctx context.Context, req CreditRequest) (Result, error) {
	return s.result(ctx, func(ctx context.Context, t *Tx) (Result, error) {
		return t.Credit(ctx, req)
	})
}

func (s *Service) Debit(ctx context.Context, req DebitRequest) (Result, error) {
	return s.result(ctx, func(ctx context.Context, t *Tx) (Result, error) {
		return t.Debit(ctx, req)
	})
}

// Precheck answers a capped award from a plain read, so a member who is
// capped or cooling down is turned away without taking the row lock. The
// locked path still decides; a pass here is only a hint.
func (s *Service) Precheck(ctx context.Context, userID string, src limiter.Source) (Result, error) {
	st, err := s.newSettings(s.db).Get(ctx)
	if err != nil {
		return Result{}, err
	}
	if !st.Enabled {
		return Result{}, core.ErrEconomyDisabled
	}

	u, err := s.newRepo(s.db).GetUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, err
	}

	counters := u.Counters()
	decision := limiter.CheckCap(src, counters)
	if !decision.Allowed {
		return Result{Balance: u.Balance}, core.ErrCapReached
	}
	if ok, wait := limiter.CooldownOK(src, counters, s.clock.Now()); !ok {
		return Result{Balance: u.Balance, Remaining: decision.Remaining, Wait: wait}, core.ErrCooldown
	}
	return Result{Balance: u.Balance, Remaining: decision.Remaining}, nil
}

func (s *Service) precheckedResult(
	ctx context.Context,
	userID string,
	src limiter.Source,
	op func(ctx context.Context, t *Tx) (Result, error),
) (Result, error) {
	if res, err := s.Precheck(ctx, userID, src); err != nil {
		return res, err
	}
	return s.result(ctx, op)
}

func (s *Service) ClaimDaily(ctx context.Context, userID string) (Result, error) {
	return s.precheckedResult(ctx, userID, limiter.SourceDaily, func(ctx context.Context, t *Tx) (Result, error) {
		return t.ClaimDaily(ctx, userID)
	})
}

func (s *Service) RecordEngagement(ctx context.Context, userID string) (Result, error) {
	return s.precheckedResult(ctx, userID, limiter.SourceEngagement, func(ctx context.Context, t *Tx) (Result, error) {
		return t.RecordEngagement(ctx, userID)
	})
}

func (s *Service) RecordCampusPhoto(ctx context.Context, userID string) (Result, error) {
	return s.precheckedResult(ctx, userID, limiter.SourceCampusPhoto, func(ctx context.Context, t *Tx) (Result, error) {
		return t.RecordCampusPhoto(ctx, userID)
	})
}

func (s *Service) RecordEnrollmentDeposit(ctx context.Context, userID string) (Result, error) {
	return s.result(ctx, func(ctx context.Context, t *Tx) (Result, error) {
		return t.RecordEnrollmentDeposit(ctx, userID)
	})
}

func (s *Service) ApplyRoleBonus(
	ctx context.Context,
	userID string,
	kind BonusKind,
	bypass bool,
) (Result, error) {
	return s.result(ctx, func(ctx context.Context, t *Tx) (Result, error) {
		return t.ApplyRoleBonus(ctx, userID, kind, bypass)
	})
}

func (s *Service) SetBirthday(ctx context.Context, userID string, month, day int) (Result, error) {
	return s.result(ctx, func(ctx context.Context, t *Tx) (Result, error) {
		return t.SetBirthday(ctx, userID, month, day)
	})
}

func (s *Service) GiftBirthday(ctx context.Context, userID string, year int) (Result, error) {
	return s.result(ctx, func(ctx context.Context, t *Tx) (Result, error) {
		return t.GiftBirthday(ctx, userID, year)
	})
}

func (s *Service) Give(ctx context.Context, userID string, amount int64) (Result, error) {
	return s.result(ctx, func(ctx context.Context, t *Tx) (Result, error) {
		return t.Give(ctx, userID, amount)
	})
}

func (s *Service) RecordActivity(
	ctx context.Context,
	userID string,
	kind limiter.Source,
	delta int,
) (ActivityResult, error) {
	if capped, count, err := s.activityCapped(ctx, userID, kind); err != nil || capped {
		return ActivityResult{Count: count}, err
	}

	var res ActivityResult
	err := s.Run(ctx, func(t *Tx) error {
		var opErr error
		res, opErr = t.RecordActivity(ctx, userID, kind, delta)
		return opErr
	})
	return res, err
}

// activityCapped reports a counter already at its cap from a plain read.
// A full counter never moves again, so the transaction can be skipped.
func (s *Service) activityCapped(ctx context.Context, userID string, kind limiter.Source) (bool, int, error) {
	if _, ok := limiter.RuleFor(kind); !ok {
		return false, 0, nil
	}

	u, err := s.newRepo(s.db).GetUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	counters := u.Counters()
	if limiter.CheckCap(kind, counters).Allowed {
		return false, 0, nil
	}
	return true, counters.Used(kind), nil
}

// GiveAll credits every user. Users are locked in ascending id order, one
// batch per transaction, so it never deadlocks against itself.
func (s *Service) GiveAll(ctx context.Context, amount int64) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("give all amount %d: %w", amount, core.ErrInvalidInput)
	}

	enabled, err := s.newSettings(s.db).Get(ctx)
	if err != nil {
		return 0, err
	}
	if !enabled.Enabled {
		return 0, core.ErrEconomyDisabled
	}

	credited := 0
	after := ""
	for {
		ids, err := s.newRepo(s.db).UserIDsAfter(ctx, after, giveAllBatch)
		if err != nil {
			return credited, err
		}
		if len(ids) == 0 {
			break
		}

		err = s.Run(ctx, func(t *Tx) error {
			for _, id := range ids {
				if _, err := t.Credit(ctx, CreditRequest{
					UserID: id,
					Amount: amount,
					Reason: ReasonAdminGiveAll,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return credited, err
		}

		credited += len(ids)
		after = ids[len(ids)-1]
		if len(ids) < giveAllBatch {
			break
		}
	}

	slog.Info("give all complete", "amount", amount, "users", credited)
	return credited, nil
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit < 1 || limit > 500 {
		limit = historyDefault
	}
	return s.newRepo(s.db).History(ctx, userID, limit)
}

func (s *Service) Totals(ctx context.Context) (*Totals, error) {
	return s.newRepo(s.db).Totals(ctx)
}

// Limits builds the usage view for one member from a plain read. A member
// the store has never seen gets an all-zero view.
func (s *Service) Limits(
	ctx context.Context,
	userID string,
	progress AchievementProgress,
) (limiter.Limits, error) {
	repo := s.newRepo(s.db)

	u, err := repo.GetUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		u, err = &user.User{ID: userID}, nil
	}
	if err != nil {
		return limiter.Limits{}, err
	}

	st, err := s.newSettings(s.db).Get(ctx)
	if err != nil {
		return limiter.Limits{}, err
	}

	in := limiter.UsageInput{
		Counters:              u.Counters(),
		Balance:               u.Balance,
		PointsEarned:          u.PointsEarned,
		VerifiedBonusPoints:   st.VerifiedBonusPoints,
		OnboardingBonusPoints: st.OnboardingBonusPoints,
	}

	if progress != nil {
		held, total, unearned, err := progress.Progress(ctx, userID)
		if err != nil {
			return limiter.Limits{}, err
		}
		in.AchievementsHeld = held
		in.AchievementsTotal = total
		in.UnearnedAchievementPoints = unearned
	}

	return limiter.Usage(in, s.clock.Now()), nil
}
