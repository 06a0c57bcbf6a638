// AngelaMos | 2026
// usage.go

package limiter

import (
	"time"
)

type SourceUsage struct {
	Source    Source     `json:"source"`
	Used      int        `json:"used"`
	Cap       int        `json:"cap"`
	Remaining int        `json:"remaining"`
	Amount    int64      `json:"amount"`
	NextAt    *time.Time `json:"next_at,omitempty"`
}

type UsageInput struct {
	Counters                  Counters
	Balance                   int64
	PointsEarned              int64
	VerifiedBonusPoints       int64
	OnboardingBonusPoints     int64
	AchievementsHeld          int
	AchievementsTotal         int
	UnearnedAchievementPoints int64
}

type Limits struct {
	Sources           []SourceUsage `json:"sources"`
	Activity          []SourceUsage `json:"activity"`
	Balance           int64         `json:"balance"`
	PointsEarned      int64         `json:"points_earned"`
	AchievementsHeld  int           `json:"achievements_held"`
	AchievementsTotal int           `json:"achievements_total"`
	RemainingEarnable int64         `json:"remaining_earnable"`
	TheoreticalMax    int64         `json:"theoretical_max"`
}

var rewardedSources = []Source{
	SourceDaily,
	SourceEngagement,
	SourceCampusPhoto,
	SourceEnrollmentDeposit,
	SourceVerifiedBonus,
	SourceOnboardingBonus,
	SourceBirthdaySetup,
}

var activitySources = []Source{
	SourceMessages,
	SourceReactions,
	SourceVoice,
}

// Usage summarises caps and the theoretical maximum balance: the current
// balance plus every point still earnable from capped sources, one-shot
// bonuses and unearned achievements. Yearly birthday gifts are uncapped
// and left out.
func Usage(in UsageInput, now time.Time) Limits {
	out := Limits{
		Sources:           make([]SourceUsage, 0, len(rewardedSources)),
		Activity:          make([]SourceUsage, 0, len(activitySources)),
		Balance:           in.Balance,
		PointsEarned:      in.PointsEarned,
		AchievementsHeld:  in.AchievementsHeld,
		AchievementsTotal: in.AchievementsTotal,
	}

	for _, s := range rewardedSources {
		rule := rules[s]
		amount := rule.Amount
		switch s {
		case SourceVerifiedBonus:
			amount = in.VerifiedBonusPoints
		case SourceOnboardingBonus:
			amount = in.OnboardingBonusPoints
		}

		d := CheckCap(s, in.Counters)
		u := SourceUsage{
			Source:    s,
			Used:      in.Counters.Used(s),
			Cap:       rule.Cap,
			Remaining: d.Remaining,
			Amount:    amount,
		}
		if ok, wait := CooldownOK(s, in.Counters, now); !ok && d.Allowed {
			next := now.Add(wait)
			u.NextAt = &next
		}

		out.Sources = append(out.Sources, u)
		out.RemainingEarnable += int64(d.Remaining) * amount
	}

	for _, s := range activitySources {
		rule := rules[s]
		d := CheckCap(s, in.Counters)
		out.Activity = append(out.Activity, SourceUsage{
			Source:    s,
			Used:      in.Counters.Used(s),
			Cap:       rule.Cap,
			Remaining: d.Remaining,
		})
	}

	out.RemainingEarnable += in.UnearnedAchievementPoints
	out.TheoreticalMax = in.Balance + out.RemainingEarnable

	return out
}
