// AngelaMos | 2026
// limiter_test.go

package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckCap(t *testing.T) {
	tests := []struct {
		name      string
		source    Source
		counters  Counters
		allowed   bool
		remaining int
	}{
		{
			name:      "fresh user daily",
			source:    SourceDaily,
			allowed:   true,
			remaining: MaxDailyClaims,
		},
		{
			name:      "last daily claim",
			source:    SourceDaily,
			counters:  Counters{DailyClaims: MaxDailyClaims - 1},
			allowed:   true,
			remaining: 1,
		},
		{
			name:     "daily exhausted",
			source:   SourceDaily,
			counters: Counters{DailyClaims: MaxDailyClaims},
			allowed:  false,
		},
		{
			name:     "campus photos exhausted",
			source:   SourceCampusPhoto,
			counters: Counters{CampusPhotos: MaxCampusPhotos},
			allowed:  false,
		},
		{
			name:     "one-shot held",
			source:   SourceEnrollmentDeposit,
			counters: Counters{EnrollmentDeposit: true},
			allowed:  false,
		},
		{
			name:      "one-shot open",
			source:    SourceVerifiedBonus,
			allowed:   true,
			remaining: 1,
		},
		{
			name:     "unknown source",
			source:   Source("nope"),
			allowed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CheckCap(tt.source, tt.counters)
			require.Equal(t, tt.allowed, d.Allowed)
			require.Equal(t, tt.remaining, d.Remaining)
		})
	}
}

func TestCooldownOK(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ok, wait := CooldownOK(SourceDaily, Counters{}, now)
	require.True(t, ok)
	require.Zero(t, wait)

	last := now.Add(-23 * time.Hour)
	ok, wait = CooldownOK(SourceDaily, Counters{LastDaily: &last}, now)
	require.False(t, ok)
	require.Equal(t, time.Hour, wait)

	last = now.Add(-DailyCooldown)
	ok, _ = CooldownOK(SourceDaily, Counters{LastDaily: &last}, now)
	require.True(t, ok, "exactly 24h later is allowed")

	eng := now.Add(-19 * time.Hour)
	ok, wait = CooldownOK(SourceEngagement, Counters{LastEngagement: &eng}, now)
	require.False(t, ok)
	require.Equal(t, time.Hour, wait)

	ok, _ = CooldownOK(SourceCampusPhoto, Counters{}, now)
	require.True(t, ok, "campus photos have no cooldown")
}

func TestClamp(t *testing.T) {
	require.Equal(t, 1, Clamp(SourceMessages, 0, 1))
	require.Equal(t, 0, Clamp(SourceMessages, MaxMessages, 1))
	require.Equal(t, 2, Clamp(SourceVoice, MaxVoiceMinutes-2, 5))
	require.Equal(t, 0, Clamp(SourceReactions, 10, 0))
	require.Equal(t, 0, Clamp(SourceDaily, 0, -1))
}

func TestOneShotsHeld(t *testing.T) {
	c := Counters{VerifiedBonus: true, BirthdaySetup: true}
	require.Equal(t, 2, c.OneShotsHeld())
	require.Equal(t, 0, Counters{}.OneShotsHeld())
}

func TestUsageTheoreticalMax(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Hour)

	in := UsageInput{
		Counters: Counters{
			DailyClaims:       10,
			LastDaily:         &last,
			CampusPhotos:      5,
			VerifiedBonus:     true,
			EnrollmentDeposit: true,
		},
		Balance:                   1000,
		VerifiedBonusPoints:       200,
		OnboardingBonusPoints:     500,
		AchievementsHeld:          2,
		AchievementsTotal:         5,
		UnearnedAchievementPoints: 300,
	}

	got := Usage(in, now)

	want := int64(80)*DailyAmount +
		int64(MaxDailyEngagement)*EngagementAmount +
		500 +
		BirthdaySetupAmount +
		300
	require.Equal(t, want, got.RemainingEarnable)
	require.Equal(t, 1000+want, got.TheoreticalMax)

	var daily SourceUsage
	for _, s := range got.Sources {
		if s.Source == SourceDaily {
			daily = s
		}
	}
	require.Equal(t, 10, daily.Used)
	require.Equal(t, 80, daily.Remaining)
	require.NotNil(t, daily.NextAt)
	require.Equal(t, last.Add(DailyCooldown), *daily.NextAt)

	require.Len(t, got.Activity, 3)
}
