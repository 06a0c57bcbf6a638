// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
)

// User is a community member keyed by their chat account id. Rows are
// created lazily by whichever surface sees the member first and are never
// deleted.
type User struct {
	ID                        string     `db:"id"`
	Username                  string     `db:"username"`
	AvatarURL                 string     `db:"avatar_url"`
	UUID                      uuid.UUID  `db:"user_uuid"`
	IsAdmin                   bool       `db:"is_admin"`
	Balance                   int64      `db:"balance"`
	PointsEarned              int64      `db:"points_earned"`
	MessageCount              int        `db:"message_count"`
	ReactionCount             int        `db:"reaction_count"`
	VoiceMinutes              int        `db:"voice_minutes"`
	VerifiedBonusReceived     bool       `db:"verified_bonus_received"`
	OnboardingBonusReceived   bool       `db:"onboarding_bonus_received"`
	EnrollmentDepositReceived bool       `db:"enrollment_deposit_received"`
	BirthdayPointsReceived    bool       `db:"birthday_points_received"`
	HasBoosted                bool       `db:"has_boosted"`
	LastDaily                 *time.Time `db:"last_daily"`
	LastDailyEngagement       *time.Time `db:"last_daily_engagement"`
	DailyClaimsCount          int        `db:"daily_claims_count"`
	CampusPhotosCount         int        `db:"campus_photos_count"`
	DailyEngagementCount      int        `db:"daily_engagement_count"`
	BirthdayMonth             *int       `db:"birthday_month"`
	BirthdayDay               *int       `db:"birthday_day"`
	TokenVersion              int        `db:"token_version"`
	CreatedAt                 time.Time  `db:"created_at"`
	UpdatedAt                 time.Time  `db:"updated_at"`
}

func (u *User) Counters() limiter.Counters {
	return limiter.Counters{
		DailyClaims:       u.DailyClaimsCount,
		DailyEngagements:  u.DailyEngagementCount,
		CampusPhotos:      u.CampusPhotosCount,
		Messages:          u.MessageCount,
		Reactions:         u.ReactionCount,
		VoiceMinutes:      u.VoiceMinutes,
		LastDaily:         u.LastDaily,
		LastEngagement:    u.LastDailyEngagement,
		VerifiedBonus:     u.VerifiedBonusReceived,
		OnboardingBonus:   u.OnboardingBonusReceived,
		EnrollmentDeposit: u.EnrollmentDepositReceived,
		BirthdaySetup:     u.BirthdayPointsReceived,
	}
}

func (u *User) HasBirthday() bool {
	return u.BirthdayMonth != nil && u.BirthdayDay != nil
}

// DisplayName falls back to the account id for rows created before the
// member's name was observed.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// Profile is what a surface knows about a member when it first sees them.
type Profile struct {
	ID        string
	Username  string
	AvatarURL string
}

type LeaderboardEntry struct {
	Rank      int    `json:"rank"       db:"-"`
	UserID    string `json:"user_id"    db:"id"`
	Username  string `json:"username"   db:"username"`
	AvatarURL string `json:"avatar_url" db:"avatar_url"`
	Balance   int64  `json:"balance"    db:"balance"`
}

// AdminLeaderboardEntry adds spend and activity totals for the console.
type AdminLeaderboardEntry struct {
	UserID           string `db:"id"`
	Username         string `db:"username"`
	IsAdmin          bool   `db:"is_admin"`
	Balance          int64  `db:"balance"`
	PointsEarned     int64  `db:"points_earned"`
	TotalSpent       int64  `db:"total_spent"`
	PurchaseCount    int    `db:"purchase_count"`
	AchievementCount int    `db:"achievement_count"`
	MessageCount     int    `db:"message_count"`
	ReactionCount    int    `db:"reaction_count"`
	VoiceMinutes     int    `db:"voice_minutes"`
}

// ActivityScore weighs voice joins over reactions over messages.
func (e *AdminLeaderboardEntry) ActivityScore() int64 {
	return int64(e.MessageCount) + 2*int64(e.ReactionCount) + 5*int64(e.VoiceMinutes)
}

const (
	SortBalance = "balance"
	SortEarned  = "earned"
	SortSpent   = "spent"
	SortRecent  = "recent"
)
