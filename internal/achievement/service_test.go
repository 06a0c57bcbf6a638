// AngelaMos | 2026
// service_test.go

package achievement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

type fixture struct {
	store    *memstore.Store
	ledger   *ledger.Service
	svc      *achievement.Service
	recorder *notify.Recorder
}

func newFixture(t *testing.T, enabled bool) *fixture {
	t.Helper()

	clock := core.NewManualClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	store := memstore.New(clock)
	store.SeedAchievements()
	store.SetEconomy(func(s *settings.Settings) { s.Enabled = enabled })

	rec := &notify.Recorder{}
	ledgerSvc := ledger.NewService(store, store.DB(), store.Ledger, store.Settings, clock, 3)
	svc := achievement.NewService(store, store.DB(), store.Achievements, ledgerSvc, rec, 3)

	return &fixture{store: store, ledger: ledgerSvc, svc: svc, recorder: rec}
}

func names(awards []achievement.Award) []string {
	out := make([]string, len(awards))
	for i, a := range awards {
		out[i] = a.Achievement.Name
	}
	return out
}

func TestThresholdAwardedExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "u1", MessageCount: 999})

	awards, err := f.svc.EvaluateAll(ctx, "u1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"First Steps", "Chatterbox", "Social Butterfly"}, names(awards))

	const events = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted []string
	)

	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.ledger.RecordActivity(ctx, "u1", limiter.SourceMessages, 1)
			if !assert.NoError(t, err) {
				return
			}
			got, err := f.svc.Evaluate(ctx, "u1", achievement.TypeMessage, res.Count)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			granted = append(granted, names(got)...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, []string{"Conversationalist"}, granted)
	require.Equal(t, 4, f.store.HeldCount("u1"))

	u, _ := f.store.User("u1")
	require.Equal(t, 999+events, u.MessageCount)
	require.Equal(t, int64(10+50+150+100), u.Balance)
	require.Equal(t, 4, f.recorder.Count(notify.KindAchievementAwarded))
}

func TestEvaluateSkipsBelowThreshold(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "u1", ReactionCount: 49})
	_, err := f.svc.EvaluateAll(ctx, "u1")
	require.NoError(t, err)

	awards, err := f.svc.Evaluate(ctx, "u1", achievement.TypeReaction, 49)
	require.NoError(t, err)
	require.Empty(t, awards)
	require.Equal(t, 1, f.store.HeldCount("u1"))
}

func TestSpecialCountsOneShotGrants(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.ledger.ApplyRoleBonus(ctx, "u1", ledger.BonusVerified, false)
	require.NoError(t, err)

	awards, err := f.svc.Evaluate(ctx, "u1", achievement.TypeSpecial, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"Welcome Aboard"}, names(awards))
	require.Equal(t, limiter.DefaultVerifiedBonus+25, awards[0].Balance)

	again, err := f.svc.Evaluate(ctx, "u1", achievement.TypeSpecial, 0)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestNoAwardsWhileDisabled(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "u1", MessageCount: 150})

	awards, err := f.svc.EvaluateAll(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, awards)
	require.Zero(t, f.store.HeldCount("u1"))
	require.Zero(t, f.recorder.Count(notify.KindAchievementAwarded))
}

func TestNewAchievementCatchesUpViaEvaluateAll(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "u1", VoiceMinutes: 45})
	_, err := f.svc.EvaluateAll(ctx, "u1")
	require.NoError(t, err)

	err = f.svc.Create(ctx, &achievement.Achievement{
		Name:        "Night Owl",
		Description: "Spend 40 minutes in voice",
		Points:      15,
		Type:        achievement.TypeVoice,
		Requirement: 40,
	})
	require.NoError(t, err)

	awards, err := f.svc.EvaluateAll(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"Night Owl"}, names(awards))
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	err := f.svc.Create(ctx, &achievement.Achievement{Name: "x", Type: "bogus", Requirement: 1})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	err = f.svc.Create(ctx, &achievement.Achievement{Name: "x", Type: achievement.TypeMessage})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	err = f.svc.Create(ctx, &achievement.Achievement{Name: "Legend", Type: achievement.TypeMessage, Requirement: 3})
	require.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestProgress(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.store.PutUser(user.User{ID: "u1", MessageCount: 1})
	_, err := f.svc.EvaluateAll(ctx, "u1")
	require.NoError(t, err)

	held, total, unearned, err := f.svc.Progress(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, held)
	require.Equal(t, 14, total)
	require.Positive(t, unearned)
}
