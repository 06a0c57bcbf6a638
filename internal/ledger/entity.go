// AngelaMos | 2026
// entity.go

package ledger

import (
	"fmt"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
)

// Entry is one append-only balance change.
type Entry struct {
	ID           int64     `db:"id"`
	UserID       string    `db:"user_id"`
	Amount       int64     `db:"amount"`
	Reason       string    `db:"reason"`
	GrantKey     *string   `db:"grant_key"`
	BalanceAfter int64     `db:"balance_after"`
	CreatedAt    time.Time `db:"created_at"`
}

// Result reports the outcome of a ledger operation. Applied is false when
// a one-shot guard already held or a debit found too few points; neither
// case is an error.
type Result struct {
	Applied   bool
	Balance   int64
	Amount    int64
	Remaining int
	Wait      time.Duration
}

type ActivityResult struct {
	Count int
	Moved bool
}

type Totals struct {
	Users           int   `db:"users"`
	Circulating     int64 `db:"circulating"`
	EverEarned      int64 `db:"ever_earned"`
	Entries         int64 `db:"entries"`
	ActiveEarners7d int   `db:"active_earners_7d"`
}

type BonusKind string

const (
	BonusVerified   BonusKind = "verified"
	BonusOnboarding BonusKind = "onboarding"
)

func (k BonusKind) Source() limiter.Source {
	if k == BonusOnboarding {
		return limiter.SourceOnboardingBonus
	}
	return limiter.SourceVerifiedBonus
}

func (k BonusKind) Valid() bool {
	return k == BonusVerified || k == BonusOnboarding
}

const (
	ReasonDaily             = "daily"
	ReasonEngagement        = "daily_engagement"
	ReasonCampusPhoto       = "campus_photo"
	ReasonEnrollmentDeposit = "enrollment_deposit"
	ReasonVerifiedBonus     = "verified_bonus"
	ReasonOnboardingBonus   = "onboarding_bonus"
	ReasonBirthdaySetup     = "birthday_setup"
	ReasonBirthdayGift      = "birthday_gift"
	ReasonAdminGive         = "admin_give"
	ReasonAdminGiveAll      = "admin_give_all"
)

const (
	GrantVerifiedBonus     = "verified_bonus"
	GrantOnboardingBonus   = "onboarding_bonus"
	GrantEnrollmentDeposit = "enrollment_deposit"
	GrantBirthdaySetup     = "birthday_setup"
)

func BirthdayGiftGrant(year int) string {
	return fmt.Sprintf("birthday_gift:%d", year)
}

func PurchaseReason(productID int64) string {
	return fmt.Sprintf("purchase:%d", productID)
}

func AchievementReason(name string) string {
	return "achievement:" + name
}

type CreditRequest struct {
	UserID       string
	Amount       int64
	Reason       string
	Grant        string
	BypassToggle bool
}

type DebitRequest struct {
	UserID string
	Amount int64
	Reason string
}
