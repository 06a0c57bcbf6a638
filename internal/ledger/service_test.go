// AngelaMos | 2026
// service_test.go

package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newLedger(t *testing.T, enabled bool) (*ledger.Service, *memstore.Store, *core.ManualClock) {
	t.Helper()

	clock := core.NewManualClock(start)
	store := memstore.New(clock)
	store.SetEconomy(func(s *settings.Settings) {
		s.Enabled = enabled
		s.FirstTimeEnabled = enabled
	})

	svc := ledger.NewService(store, store.DB(), store.Ledger, store.Settings, clock, 3)
	return svc, store, clock
}

func requireConsistent(t *testing.T, store *memstore.Store, userID string) {
	t.Helper()

	u, ok := store.User(userID)
	require.True(t, ok)

	var sum int64
	for _, e := range store.Entries(userID) {
		sum += e.Amount
		require.Equal(t, sum, e.BalanceAfter)
	}
	require.Equal(t, sum, u.Balance)
	require.GreaterOrEqual(t, u.Balance, int64(0))
}

func TestClaimDailyStopsAtCap(t *testing.T) {
	svc, store, clock := newLedger(t, true)
	ctx := context.Background()

	for i := 0; i < limiter.MaxDailyClaims; i++ {
		res, err := svc.ClaimDaily(ctx, "u1")
		require.NoError(t, err, "claim %d", i+1)
		require.True(t, res.Applied)
		require.Equal(t, limiter.DailyAmount, res.Amount)
		clock.Advance(limiter.DailyCooldown)
	}

	_, err := svc.ClaimDaily(ctx, "u1")
	require.ErrorIs(t, err, core.ErrCapReached)

	u, _ := store.User("u1")
	require.Equal(t, int64(limiter.MaxDailyClaims)*limiter.DailyAmount, u.Balance)
	require.Equal(t, limiter.MaxDailyClaims, u.DailyClaimsCount)
	require.Len(t, store.Entries("u1"), limiter.MaxDailyClaims)
	requireConsistent(t, store, "u1")
}

func TestClaimDailyCooldown(t *testing.T) {
	svc, _, clock := newLedger(t, true)
	ctx := context.Background()

	_, err := svc.ClaimDaily(ctx, "u1")
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	res, err := svc.ClaimDaily(ctx, "u1")
	require.ErrorIs(t, err, core.ErrCooldown)
	require.Equal(t, time.Hour, res.Wait)

	clock.Advance(time.Hour)
	res, err = svc.ClaimDaily(ctx, "u1")
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, 2*limiter.DailyAmount, res.Balance)
}

func TestEarningBlockedWhileDisabled(t *testing.T) {
	svc, store, _ := newLedger(t, false)
	ctx := context.Background()

	_, err := svc.ClaimDaily(ctx, "u1")
	require.ErrorIs(t, err, core.ErrEconomyDisabled)

	_, err = svc.RecordEnrollmentDeposit(ctx, "u1")
	require.ErrorIs(t, err, core.ErrEconomyDisabled)

	_, err = svc.RecordActivity(ctx, "u1", limiter.SourceMessages, 1)
	require.ErrorIs(t, err, core.ErrEconomyDisabled)

	_, err = svc.Give(ctx, "u1", 10)
	require.ErrorIs(t, err, core.ErrEconomyDisabled)

	require.Empty(t, store.Entries("u1"))
}

func TestOneShotGrantsAreIdempotentUnderConcurrency(t *testing.T) {
	svc, store, _ := newLedger(t, true)
	ctx := context.Background()

	const callers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RecordEnrollmentDeposit(ctx, "u1")
			assert.NoError(t, err)
			if res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, applied)

	u, _ := store.User("u1")
	require.Equal(t, limiter.EnrollmentDepositAmount, u.Balance)
	require.True(t, u.EnrollmentDepositReceived)
	require.Len(t, store.Entries("u1"), 1)
}

func TestRoleBonusBypassesToggleOnlyWhenAsked(t *testing.T) {
	svc, store, _ := newLedger(t, false)
	ctx := context.Background()

	_, err := svc.ApplyRoleBonus(ctx, "u1", ledger.BonusVerified, false)
	require.ErrorIs(t, err, core.ErrEconomyDisabled)

	res, err := svc.ApplyRoleBonus(ctx, "u1", ledger.BonusVerified, true)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, limiter.DefaultVerifiedBonus, res.Balance)

	res, err = svc.ApplyRoleBonus(ctx, "u1", ledger.BonusVerified, true)
	require.NoError(t, err)
	require.False(t, res.Applied)

	res, err = svc.ApplyRoleBonus(ctx, "u1", ledger.BonusOnboarding, true)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, limiter.DefaultVerifiedBonus+limiter.DefaultOnboardingBonus, res.Balance)

	_, err = svc.ApplyRoleBonus(ctx, "u1", ledger.BonusKind("gold"), true)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	requireConsistent(t, store, "u1")
}

func TestDebitNeverOverdraws(t *testing.T) {
	svc, store, _ := newLedger(t, true)
	ctx := context.Background()

	_, err := svc.Give(ctx, "u1", 100)
	require.NoError(t, err)

	res, err := svc.Debit(ctx, ledger.DebitRequest{UserID: "u1", Amount: 150, Reason: "purchase:1"})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, int64(100), res.Balance)

	res, err = svc.Debit(ctx, ledger.DebitRequest{UserID: "u1", Amount: 100, Reason: "purchase:1"})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Zero(t, res.Balance)

	u, _ := store.User("u1")
	require.Equal(t, int64(100), u.PointsEarned)
	requireConsistent(t, store, "u1")
}

func TestCreditRejectsBadInput(t *testing.T) {
	svc, _, _ := newLedger(t, true)
	ctx := context.Background()

	_, err := svc.Give(ctx, "u1", 0)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.Credit(ctx, ledger.CreditRequest{UserID: "u1", Amount: 5})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.Give(ctx, "", 5)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSetBirthdayPaysOnce(t *testing.T) {
	svc, store, _ := newLedger(t, true)
	ctx := context.Background()

	res, err := svc.SetBirthday(ctx, "u1", 2, 29)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, limiter.BirthdaySetupAmount, res.Balance)

	res, err = svc.SetBirthday(ctx, "u1", 7, 4)
	require.NoError(t, err)
	require.False(t, res.Applied)

	u, _ := store.User("u1")
	require.Equal(t, 7, *u.BirthdayMonth)
	require.Equal(t, 4, *u.BirthdayDay)
	require.Equal(t, limiter.BirthdaySetupAmount, u.Balance)

	_, err = svc.SetBirthday(ctx, "u1", 2, 30)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.SetBirthday(ctx, "u1", 13, 1)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestGiftBirthdayOncePerYear(t *testing.T) {
	svc, store, _ := newLedger(t, true)
	ctx := context.Background()

	res, err := svc.GiftBirthday(ctx, "u1", 2026)
	require.NoError(t, err)
	require.True(t, res.Applied)

	res, err = svc.GiftBirthday(ctx, "u1", 2026)
	require.NoError(t, err)
	require.False(t, res.Applied)

	res, err = svc.GiftBirthday(ctx, "u1", 2027)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, 2*limiter.BirthdayGiftAmount, res.Balance)

	requireConsistent(t, store, "u1")
}

func TestRecordActivityClampsAtCap(t *testing.T) {
	svc, store, _ := newLedger(t, true)
	ctx := context.Background()

	store.PutUser(user.User{ID: "u1", VoiceMinutes: limiter.MaxVoiceMinutes - 2})

	res, err := svc.RecordActivity(ctx, "u1", limiter.SourceVoice, 5)
	require.NoError(t, err)
	require.True(t, res.Moved)
	require.Equal(t, limiter.MaxVoiceMinutes, res.Count)

	res, err = svc.RecordActivity(ctx, "u1", limiter.SourceVoice, 1)
	require.NoError(t, err)
	require.False(t, res.Moved)

	_, err = svc.RecordActivity(ctx, "u1", limiter.SourceDaily, 1)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	require.Empty(t, store.Entries("u1"))
}

func TestGiveAllCreditsEveryUser(t *testing.T) {
	svc, store, _ := newLedger(t, true)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		store.PutUser(user.User{ID: id})
	}

	n, err := svc.GiveAll(ctx, 25)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, id := range []string{"a", "b", "c"} {
		u, _ := store.User(id)
		require.Equal(t, int64(25), u.Balance)
		requireConsistent(t, store, id)
	}

	_, err = svc.GiveAll(ctx, 0)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	totals, err := svc.Totals(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(75), totals.Circulating)
	require.Equal(t, 3, totals.ActiveEarners7d)
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, _, _ := newLedger(t, true)
	ctx := context.Background()

	for _, amount := range []int64{1, 2, 3} {
		_, err := svc.Give(ctx, "u1", amount)
		require.NoError(t, err)
	}

	entries, err := svc.History(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(3), entries[0].Amount)
	require.Equal(t, int64(6), entries[0].BalanceAfter)
}

func TestLimitsIsReadOnly(t *testing.T) {
	svc, store, _ := newLedger(t, true)
	ctx := context.Background()

	limits, err := svc.Limits(ctx, "new", nil)
	require.NoError(t, err)
	require.Zero(t, limits.Balance)
	require.Positive(t, limits.TheoreticalMax)

	_, ok := store.User("new")
	require.False(t, ok)

	_, err = svc.ClaimDaily(ctx, "u1")
	require.NoError(t, err)

	limits, err = svc.Limits(ctx, "u1", nil)
	require.NoError(t, err)
	require.Equal(t, limiter.DailyAmount, limits.Balance)
	require.Empty(t, store.Entries("new"))
}

type countingTx struct {
	core.Transactor
	opened int
}

func (c *countingTx) WithTx(ctx context.Context, fn func(tx core.DBTX) error) error {
	c.opened++
	return c.Transactor.WithTx(ctx, fn)
}

func TestRefusalsSkipTheTransaction(t *testing.T) {
	_, store, clock := newLedger(t, true)
	ctx := context.Background()

	tx := &countingTx{Transactor: store}
	svc := ledger.NewService(tx, store.DB(), store.Ledger, store.Settings, clock, 3)

	_, err := svc.ClaimDaily(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, tx.opened)

	clock.Advance(time.Hour)
	res, err := svc.ClaimDaily(ctx, "u1")
	require.ErrorIs(t, err, core.ErrCooldown)
	require.Equal(t, 23*time.Hour, res.Wait)
	require.Equal(t, 1, tx.opened)

	u, _ := store.User("u1")
	u.DailyClaimsCount = limiter.MaxDailyClaims
	u.MessageCount = limiter.MaxMessages
	store.PutUser(u)

	clock.Advance(limiter.DailyCooldown)
	_, err = svc.ClaimDaily(ctx, "u1")
	require.ErrorIs(t, err, core.ErrCapReached)

	act, err := svc.RecordActivity(ctx, "u1", limiter.SourceMessages, 1)
	require.NoError(t, err)
	require.False(t, act.Moved)
	require.Equal(t, limiter.MaxMessages, act.Count)
	require.Equal(t, 1, tx.opened)
}
