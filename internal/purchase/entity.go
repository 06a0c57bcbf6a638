// AngelaMos | 2026
// entity.go

package purchase

import (
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
)

type Status string

const (
	StatusCompleted       Status = fulfillment.PurchaseCompleted
	StatusPendingDelivery Status = "pending_delivery"
	StatusFailed          Status = fulfillment.PurchaseFailed
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Purchase struct {
	ID           int64     `db:"id"`
	UserID       string    `db:"user_id"`
	ProductID    int64     `db:"product_id"`
	PointsSpent  int64     `db:"points_spent"`
	Status       Status    `db:"status"`
	DeliveryInfo string    `db:"delivery_info"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Detail is a purchase joined with its product and buyer for listings.
type Detail struct {
	Purchase
	ProductName    string `db:"product_name"`
	ProductType    string `db:"product_type"`
	DeliveryMethod string `db:"delivery_method"`
	Username       string `db:"username"`
}

// Receipt is what a buyer gets back from a successful purchase.
type Receipt struct {
	Purchase    Purchase
	ProductName string
	Balance     int64
	StockLeft   *int
	DownloadURL string
}

const manualNotePrefix = "Manual delivery - UUID: "
