// AngelaMos | 2026
// dto.go

package purchase

import (
	"time"
)

type ListParams struct {
	Page     int
	PageSize int
	UserID   string
	Status   Status
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type ResolveRequest struct {
	Status       Status `json:"status"        validate:"required,oneof=completed failed"`
	DeliveryInfo string `json:"delivery_info" validate:"max=2000"`
}

type PurchaseResponse struct {
	ID           int64     `json:"id"`
	ProductID    int64     `json:"product_id"`
	ProductName  string    `json:"product_name"`
	PointsSpent  int64     `json:"points_spent"`
	Status       Status    `json:"status"`
	DeliveryInfo string    `json:"delivery_info,omitempty"`
	DownloadURL  string    `json:"download_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReceiptResponse struct {
	Purchase  PurchaseResponse `json:"purchase"`
	Balance   int64            `json:"balance"`
	StockLeft *int             `json:"stock_left,omitempty"`
}

type AdminPurchaseResponse struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	ProductID      int64     `json:"product_id"`
	ProductName    string    `json:"product_name"`
	ProductType    string    `json:"product_type"`
	DeliveryMethod string    `json:"delivery_method"`
	PointsSpent    int64     `json:"points_spent"`
	Status         Status    `json:"status"`
	DeliveryInfo   string    `json:"delivery_info"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func ToReceiptResponse(r *Receipt) ReceiptResponse {
	return ReceiptResponse{
		Purchase: PurchaseResponse{
			ID:           r.Purchase.ID,
			ProductID:    r.Purchase.ProductID,
			ProductName:  r.ProductName,
			PointsSpent:  r.Purchase.PointsSpent,
			Status:       r.Purchase.Status,
			DeliveryInfo: r.Purchase.DeliveryInfo,
			DownloadURL:  r.DownloadURL,
			CreatedAt:    r.Purchase.CreatedAt,
		},
		Balance:   r.Balance,
		StockLeft: r.StockLeft,
	}
}

func ToPurchaseResponse(p *Purchase) PurchaseResponse {
	return PurchaseResponse{
		ID:           p.ID,
		ProductID:    p.ProductID,
		PointsSpent:  p.PointsSpent,
		Status:       p.Status,
		DeliveryInfo: p.DeliveryInfo,
		CreatedAt:    p.CreatedAt,
	}
}

func ToHistoryResponseList(list []HistoryItem) []PurchaseResponse {
	out := make([]PurchaseResponse, len(list))
	for i, h := range list {
		out[i] = PurchaseResponse{
			ID:           h.ID,
			ProductID:    h.ProductID,
			ProductName:  h.ProductName,
			PointsSpent:  h.PointsSpent,
			Status:       h.Status,
			DeliveryInfo: h.DeliveryInfo,
			DownloadURL:  h.DownloadURL,
			CreatedAt:    h.CreatedAt,
		}
	}
	return out
}

func ToAdminPurchaseResponse(d Detail) AdminPurchaseResponse {
	return AdminPurchaseResponse{
		ID:             d.ID,
		UserID:         d.UserID,
		Username:       d.Username,
		ProductID:      d.ProductID,
		ProductName:    d.ProductName,
		ProductType:    d.ProductType,
		DeliveryMethod: d.DeliveryMethod,
		PointsSpent:    d.PointsSpent,
		Status:         d.Status,
		DeliveryInfo:   d.DeliveryInfo,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func ToAdminPurchaseResponseList(list []Detail) []AdminPurchaseResponse {
	out := make([]AdminPurchaseResponse, len(list))
	for i, d := range list {
		out[i] = ToAdminPurchaseResponse(d)
	}
	return out
}
