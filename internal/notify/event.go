// AngelaMos | 2026
// event.go

package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAchievementAwarded Kind = "achievement.awarded"
	KindPurchaseCreated    Kind = "purchase.created"
	KindRoleGranted        Kind = "role.granted"
	KindBonusApplied       Kind = "bonus.applied"
)

type AchievementPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int64  `json:"points"`
	Balance     int64  `json:"balance"`
}

type PurchasePayload struct {
	PurchaseID   int64  `json:"purchase_id"`
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductType  string `json:"product_type"`
	PointsSpent  int64  `json:"points_spent"`
	Status       string `json:"status"`
	DeliveryInfo string `json:"delivery_info,omitempty"`
	StockLeft    *int   `json:"stock_left,omitempty"`
}

type RolePayload struct {
	RoleID     string `json:"role_id"`
	RoleName   string `json:"role_name,omitempty"`
	PurchaseID int64  `json:"purchase_id"`
}

type BonusPayload struct {
	Source  string `json:"source"`
	Amount  int64  `json:"amount"`
	Balance int64  `json:"balance"`
}

// Event is a post-commit side effect. Delivery is at least once, so
// handlers must tolerate duplicates.
type Event struct {
	ID          string              `json:"id"`
	Kind        Kind                `json:"kind"`
	UserID      string              `json:"user_id"`
	Username    string              `json:"username,omitempty"`
	Achievement *AchievementPayload `json:"achievement,omitempty"`
	Purchase    *PurchasePayload    `json:"purchase,omitempty"`
	Role        *RolePayload        `json:"role,omitempty"`
	Bonus       *BonusPayload       `json:"bonus,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

func newEvent(kind Kind, userID, username string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     userID,
		Username:   username,
		OccurredAt: time.Now().UTC(),
	}
}

func AchievementAwarded(userID, username string, p AchievementPayload) Event {
	e := newEvent(KindAchievementAwarded, userID, username)
	e.Achievement = &p
	return e
}

func PurchaseCreated(userID, username string, p PurchasePayload) Event {
	e := newEvent(KindPurchaseCreated, userID, username)
	e.Purchase = &p
	return e
}

func RoleGranted(userID string, p RolePayload) Event {
	e := newEvent(KindRoleGranted, userID, "")
	e.Role = &p
	return e
}

func BonusApplied(userID, username string, p BonusPayload) Event {
	e := newEvent(KindBonusApplied, userID, username)
	e.Bonus = &p
	return e
}

// Validate rejects events whose payload does not match their kind.
func (e Event) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("event %s: missing user id", e.Kind)
	}

	var ok bool
	switch e.Kind {
	case KindAchievementAwarded:
		ok = e.Achievement != nil
	case KindPurchaseCreated:
		ok = e.Purchase != nil
	case KindRoleGranted:
		ok = e.Role != nil
	case KindBonusApplied:
		ok = e.Bonus != nil
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}

	if !ok {
		return fmt.Errorf("event %s: missing payload", e.Kind)
	}
	return nil
}
