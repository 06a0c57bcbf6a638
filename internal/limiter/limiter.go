// AngelaMos | 2026
// limiter.go

package limiter

import (
	"time"
)

type Source string

const (
	SourceDaily             Source = "daily"
	SourceEngagement        Source = "daily_engagement"
	SourceCampusPhoto       Source = "campus_photo"
	SourceEnrollmentDeposit Source = "enrollment_deposit"
	SourceVerifiedBonus     Source = "verified_bonus"
	SourceOnboardingBonus   Source = "onboarding_bonus"
	SourceBirthdaySetup     Source = "birthday_setup"
	SourceMessages          Source = "messages"
	SourceReactions         Source = "reactions"
	SourceVoice             Source = "voice"
)

const (
	DailyAmount     int64 = 85
	MaxDailyClaims        = 90
	DailyCooldown         = 24 * time.Hour

	EngagementAmount   int64 = 25
	MaxDailyEngagement       = 365
	EngagementCooldown       = 20 * time.Hour

	CampusPhotoAmount int64 = 100
	MaxCampusPhotos         = 5

	EnrollmentDepositAmount int64 = 500
	BirthdaySetupAmount     int64 = 50
	BirthdayGiftAmount      int64 = 100

	DefaultVerifiedBonus   int64 = 200
	DefaultOnboardingBonus int64 = 500

	MaxMessages     = 50000
	MaxReactions    = 25000
	MaxVoiceMinutes = 10000
)

// Rule describes one earning source. Amount is zero for counters that are
// not rewarded directly and for bonuses whose value lives in settings.
type Rule struct {
	Source   Source
	Amount   int64
	Cap      int
	Cooldown time.Duration
	OneShot  bool
}

var rules = map[Source]Rule{
	SourceDaily: {
		Source:   SourceDaily,
		Amount:   DailyAmount,
		Cap:      MaxDailyClaims,
		Cooldown: DailyCooldown,
	},
	SourceEngagement: {
		Source:   SourceEngagement,
		Amount:   EngagementAmount,
		Cap:      MaxDailyEngagement,
		Cooldown: EngagementCooldown,
	},
	SourceCampusPhoto: {
		Source: SourceCampusPhoto,
		Amount: CampusPhotoAmount,
		Cap:    MaxCampusPhotos,
	},
	SourceEnrollmentDeposit: {
		Source:  SourceEnrollmentDeposit,
		Amount:  EnrollmentDepositAmount,
		Cap:     1,
		OneShot: true,
	},
	SourceVerifiedBonus: {
		Source:  SourceVerifiedBonus,
		Cap:     1,
		OneShot: true,
	},
	SourceOnboardingBonus: {
		Source:  SourceOnboardingBonus,
		Cap:     1,
		OneShot: true,
	},
	SourceBirthdaySetup: {
		Source:  SourceBirthdaySetup,
		Amount:  BirthdaySetupAmount,
		Cap:     1,
		OneShot: true,
	},
	SourceMessages:  {Source: SourceMessages, Cap: MaxMessages},
	SourceReactions: {Source: SourceReactions, Cap: MaxReactions},
	SourceVoice:     {Source: SourceVoice, Cap: MaxVoiceMinutes},
}

func RuleFor(s Source) (Rule, bool) {
	r, ok := rules[s]
	return r, ok
}

// Counters is the slice of a user row the policy reads.
type Counters struct {
	DailyClaims       int
	DailyEngagements  int
	CampusPhotos      int
	Messages          int
	Reactions         int
	VoiceMinutes      int
	LastDaily         *time.Time
	LastEngagement    *time.Time
	VerifiedBonus     bool
	OnboardingBonus   bool
	EnrollmentDeposit bool
	BirthdaySetup     bool
}

func (c Counters) Used(s Source) int {
	switch s {
	case SourceDaily:
		return c.DailyClaims
	case SourceEngagement:
		return c.DailyEngagements
	case SourceCampusPhoto:
		return c.CampusPhotos
	case SourceMessages:
		return c.Messages
	case SourceReactions:
		return c.Reactions
	case SourceVoice:
		return c.VoiceMinutes
	case SourceEnrollmentDeposit:
		return boolCount(c.EnrollmentDeposit)
	case SourceVerifiedBonus:
		return boolCount(c.VerifiedBonus)
	case SourceOnboardingBonus:
		return boolCount(c.OnboardingBonus)
	case SourceBirthdaySetup:
		return boolCount(c.BirthdaySetup)
	}
	return 0
}

// OneShotsHeld counts the one-time grants already received.
func (c Counters) OneShotsHeld() int {
	return boolCount(c.VerifiedBonus) +
		boolCount(c.OnboardingBonus) +
		boolCount(c.EnrollmentDeposit) +
		boolCount(c.BirthdaySetup)
}

type Decision struct {
	Allowed   bool
	Remaining int
}

func CheckCap(s Source, c Counters) Decision {
	rule, ok := rules[s]
	if !ok {
		return Decision{}
	}

	remaining := rule.Cap - c.Used(s)
	if remaining <= 0 {
		return Decision{Allowed: false, Remaining: 0}
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// CooldownOK reports whether s may fire at now. When it may not, wait is
// the time left until it can.
func CooldownOK(s Source, c Counters, now time.Time) (bool, time.Duration) {
	rule, ok := rules[s]
	if !ok || rule.Cooldown == 0 {
		return true, 0
	}

	var last *time.Time
	switch s {
	case SourceDaily:
		last = c.LastDaily
	case SourceEngagement:
		last = c.LastEngagement
	}
	if last == nil {
		return true, 0
	}

	next := last.Add(rule.Cooldown)
	if !now.Before(next) {
		return true, 0
	}
	return false, next.Sub(now)
}

// Clamp bounds an activity counter increment so the result never exceeds
// the cap. It returns the applied delta, which may be zero.
func Clamp(s Source, current, delta int) int {
	rule, ok := rules[s]
	if !ok || delta <= 0 {
		return 0
	}
	room := rule.Cap - current
	if room <= 0 {
		return 0
	}
	if delta > room {
		return room
	}
	return delta
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
