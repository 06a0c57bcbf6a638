// AngelaMos | 2026
// tx.go

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

// Tx runs ledger operations inside a transaction owned by the caller. Every
// operation takes the user row lock first and re-checks its guards under
// it, so callers may compose several operations in one commit.
type Tx struct {
	repo     Repository
	settings settings.Repository
	clock    core.Clock
}

func (t *Tx) LockUser(ctx context.Context, userID string) (*user.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("lock user: empty id: %w", core.ErrInvalidInput)
	}
	return t.repo.LockUser(ctx, userID)
}

func (t *Tx) Settings(ctx context.Context) (*settings.Settings, error) {
	return t.settings.Get(ctx)
}

func (t *Tx) requireEnabled(ctx context.Context) (*settings.Settings, error) {
	s, err := t.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !s.Enabled {
		return s, core.ErrEconomyDisabled
	}
	return s, nil
}

func (t *Tx) Credit(ctx context.Context, req CreditRequest) (Result, error) {
	if req.Amount <= 0 {
		return Result{}, fmt.Errorf("credit amount %d: %w", req.Amount, core.ErrInvalidInput)
	}
	if req.Reason == "" {
		return Result{}, fmt.Errorf("credit reason: %w", core.ErrInvalidInput)
	}

	if !req.BypassToggle {
		if _, err := t.requireEnabled(ctx); err != nil {
			return Result{}, err
		}
	}

	u, err := t.LockUser(ctx, req.UserID)
	if err != nil {
		return Result{}, err
	}

	if req.Grant != "" {
		held, err := t.grantHeld(ctx, u, req.Grant)
		if err != nil {
			return Result{}, err
		}
		if held {
			return Result{Applied: false, Balance: u.Balance}, nil
		}
	}

	if err := t.apply(ctx, u, req.Amount, req.Reason, req.Grant); err != nil {
		return Result{}, err
	}

	return Result{Applied: true, Balance: u.Balance, Amount: req.Amount}, nil
}

// Debit never checks the economy toggle; spending is gated elsewhere.
func (t *Tx) Debit(ctx context.Context, req DebitRequest) (Result, error) {
	if req.Amount <= 0 {
		return Result{}, fmt.Errorf("debit amount %d: %w", req.Amount, core.ErrInvalidInput)
	}

	u, err := t.LockUser(ctx, req.UserID)
	if err != nil {
		return Result{}, err
	}

	if u.Balance < req.Amount {
		return Result{Applied: false, Balance: u.Balance}, nil
	}

	if err := t.apply(ctx, u, -req.Amount, req.Reason, ""); err != nil {
		return Result{}, err
	}

	return Result{Applied: true, Balance: u.Balance, Amount: req.Amount}, nil
}

func (t *Tx) ClaimDaily(ctx context.Context, userID string) (Result, error) {
	return t.cappedAward(ctx, userID, limiter.SourceDaily, ReasonDaily)
}

func (t *Tx) RecordEngagement(ctx context.Context, userID string) (Result, error) {
	return t.cappedAward(ctx, userID, limiter.SourceEngagement, ReasonEngagement)
}

func (t *Tx) RecordCampusPhoto(ctx context.Context, userID string) (Result, error) {
	return t.cappedAward(ctx, userID, limiter.SourceCampusPhoto, ReasonCampusPhoto)
}

func (t *Tx) RecordEnrollmentDeposit(ctx context.Context, userID string) (Result, error) {
	if _, err := t.requireEnabled(ctx); err != nil {
		return Result{}, err
	}

	u, err := t.LockUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	if u.EnrollmentDepositReceived {
		return Result{Applied: false, Balance: u.Balance}, nil
	}

	amount := limiter.EnrollmentDepositAmount
	if err := t.apply(ctx, u, amount, ReasonEnrollmentDeposit, GrantEnrollmentDeposit); err != nil {
		return Result{}, err
	}

	return Result{Applied: true, Balance: u.Balance, Amount: amount}, nil
}

// ApplyRoleBonus credits the verified or onboarding bonus once per user at
// the currently configured value. bypass skips the toggle for bootstrap.
func (t *Tx) ApplyRoleBonus(
	ctx context.Context,
	userID string,
	kind BonusKind,
	bypass bool,
) (Result, error) {
	if !kind.Valid() {
		return Result{}, fmt.Errorf("bonus kind %q: %w", kind, core.ErrInvalidInput)
	}

	s, err := t.settings.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	if !s.Enabled && !bypass {
		return Result{}, core.ErrEconomyDisabled
	}

	amount, reason, grant := s.VerifiedBonusPoints, ReasonVerifiedBonus, GrantVerifiedBonus
	if kind == BonusOnboarding {
		amount, reason, grant = s.OnboardingBonusPoints, ReasonOnboardingBonus, GrantOnboardingBonus
	}
	if amount <= 0 {
		return Result{}, fmt.Errorf("%s bonus not configured: %w", kind, core.ErrInvalidInput)
	}

	return t.Credit(ctx, CreditRequest{
		UserID:       userID,
		Amount:       amount,
		Reason:       reason,
		Grant:        grant,
		BypassToggle: true,
	})
}

// RecordActivity bumps a passive counter, clamped at its cap. Counters are
// frozen while the economy is disabled.
func (t *Tx) RecordActivity(
	ctx context.Context,
	userID string,
	kind limiter.Source,
	delta int,
) (ActivityResult, error) {
	if kind != limiter.SourceMessages &&
		kind != limiter.SourceReactions &&
		kind != limiter.SourceVoice {
		return ActivityResult{}, fmt.Errorf("activity kind %q: %w", kind, core.ErrInvalidInput)
	}

	if _, err := t.requireEnabled(ctx); err != nil {
		return ActivityResult{}, err
	}

	u, err := t.LockUser(ctx, userID)
	if err != nil {
		return ActivityResult{}, err
	}

	counter := activityCounter(u, kind)
	applied := limiter.Clamp(kind, *counter, delta)
	if applied == 0 {
		return ActivityResult{Count: *counter, Moved: false}, nil
	}

	*counter += applied
	if err := t.repo.SaveUser(ctx, u); err != nil {
		return ActivityResult{}, err
	}

	return ActivityResult{Count: *counter, Moved: true}, nil
}

// SetBirthday stores the member's birthday and pays the one-time setup
// bonus the first time one is set. Changing it later pays nothing.
func (t *Tx) SetBirthday(ctx context.Context, userID string, month, day int) (Result, error) {
	if err := ValidateBirthday(month, day); err != nil {
		return Result{}, err
	}

	u, err := t.LockUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	u.BirthdayMonth = &month
	u.BirthdayDay = &day

	if u.BirthdayPointsReceived {
		if err := t.repo.SaveUser(ctx, u); err != nil {
			return Result{}, err
		}
		return Result{Applied: false, Balance: u.Balance}, nil
	}

	s, err := t.settings.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	if !s.Enabled {
		if err := t.repo.SaveUser(ctx, u); err != nil {
			return Result{}, err
		}
		return Result{Applied: false, Balance: u.Balance}, nil
	}

	amount := limiter.BirthdaySetupAmount
	if err := t.apply(ctx, u, amount, ReasonBirthdaySetup, GrantBirthdaySetup); err != nil {
		return Result{}, err
	}

	return Result{Applied: true, Balance: u.Balance, Amount: amount}, nil
}

// GiftBirthday pays the yearly birthday gift at most once per year.
func (t *Tx) GiftBirthday(ctx context.Context, userID string, year int) (Result, error) {
	return t.Credit(ctx, CreditRequest{
		UserID: userID,
		Amount: limiter.BirthdayGiftAmount,
		Reason: ReasonBirthdayGift,
		Grant:  BirthdayGiftGrant(year),
	})
}

func (t *Tx) Give(ctx context.Context, userID string, amount int64) (Result, error) {
	return t.Credit(ctx, CreditRequest{
		UserID: userID,
		Amount: amount,
		Reason: ReasonAdminGive,
	})
}

func (t *Tx) cappedAward(
	ctx context.Context,
	userID string,
	source limiter.Source,
	reason string,
) (Result, error) {
	if _, err := t.requireEnabled(ctx); err != nil {
		return Result{}, err
	}

	u, err := t.LockUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	rule, _ := limiter.RuleFor(source)
	counters := u.Counters()

	decision := limiter.CheckCap(source, counters)
	if !decision.Allowed {
		return Result{Balance: u.Balance}, core.ErrCapReached
	}

	now := t.clock.Now()
	if ok, wait := limiter.CooldownOK(source, counters, now); !ok {
		return Result{Balance: u.Balance, Remaining: decision.Remaining, Wait: wait}, core.ErrCooldown
	}

	switch source {
	case limiter.SourceDaily:
		u.DailyClaimsCount++
		u.LastDaily = &now
	case limiter.SourceEngagement:
		u.DailyEngagementCount++
		u.LastDailyEngagement = &now
	case limiter.SourceCampusPhoto:
		u.CampusPhotosCount++
	}

	if err := t.apply(ctx, u, rule.Amount, reason, ""); err != nil {
		return Result{}, err
	}

	return Result{
		Applied:   true,
		Balance:   u.Balance,
		Amount:    rule.Amount,
		Remaining: decision.Remaining - 1,
	}, nil
}

func (t *Tx) grantHeld(ctx context.Context, u *user.User, grant string) (bool, error) {
	if flag := grantFlag(u, grant); flag != nil {
		return *flag, nil
	}
	return t.repo.HasGrant(ctx, u.ID, grant)
}

// apply moves the balance on a locked user, appends the ledger entry and
// persists the row. Positive amounts also raise points_earned.
func (t *Tx) apply(ctx context.Context, u *user.User, amount int64, reason, grant string) error {
	next := u.Balance + amount
	if next < 0 {
		return fmt.Errorf("apply %d to balance %d: %w", amount, u.Balance, core.ErrInsufficient)
	}

	u.Balance = next
	if amount > 0 {
		u.PointsEarned += amount
	}

	if flag := grantFlag(u, grant); flag != nil {
		*flag = true
	}

	entry := &Entry{
		UserID:       u.ID,
		Amount:       amount,
		Reason:       reason,
		BalanceAfter: next,
	}
	if grant != "" {
		entry.GrantKey = &grant
	}

	if err := t.repo.InsertEntry(ctx, entry); err != nil {
		return err
	}

	return t.repo.SaveUser(ctx, u)
}

func grantFlag(u *user.User, grant string) *bool {
	switch grant {
	case GrantVerifiedBonus:
		return &u.VerifiedBonusReceived
	case GrantOnboardingBonus:
		return &u.OnboardingBonusReceived
	case GrantEnrollmentDeposit:
		return &u.EnrollmentDepositReceived
	case GrantBirthdaySetup:
		return &u.BirthdayPointsReceived
	}
	return nil
}

func activityCounter(u *user.User, kind limiter.Source) *int {
	switch kind {
	case limiter.SourceReactions:
		return &u.ReactionCount
	case limiter.SourceVoice:
		return &u.VoiceMinutes
	default:
		return &u.MessageCount
	}
}

// ValidateBirthday accepts February 29 so leap-day birthdays can be set.
func ValidateBirthday(month, day int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("birthday month %d: %w", month, core.ErrInvalidInput)
	}
	maxDay := time.Date(2024, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 || day > maxDay {
		return fmt.Errorf("birthday day %d for month %d: %w", day, month, core.ErrInvalidInput)
	}
	return nil
}
