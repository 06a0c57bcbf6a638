// AngelaMos | 2026
// dto.go

package product

import (
	"time"
)

type ListParams struct {
	Page            int
	PageSize        int
	Category        string
	Search          string
	DeliveryMethod  DeliveryMethod
	IncludeInactive bool
	IncludeArchived bool
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 24
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type CreateRequest struct {
	Name            string         `json:"name"              validate:"required,min=1,max=200"`
	Description     string         `json:"description"       validate:"max=5000"`
	Price           int64          `json:"price"             validate:"required,gt=0"`
	Stock           *int           `json:"stock"             validate:"omitempty,gte=0"`
	IsActive        *bool          `json:"is_active"`
	Type            Type           `json:"product_type"      validate:"required,oneof=physical role file code custom"`
	DeliveryMethod  DeliveryMethod `json:"delivery_method"   validate:"required,oneof=none auto_role download code_gen manual"`
	AutoDelivery    *bool          `json:"auto_delivery"`
	DeliveryConfig  DeliveryConfig `json:"delivery_config"`
	Category        string         `json:"category"          validate:"max=50"`
	ImageURL        string         `json:"image_url"         validate:"omitempty,max=500"`
	PreviewImageURL string         `json:"preview_image_url" validate:"omitempty,max=500"`
}

// UpdateRequest is a partial update. UnlimitedStock clears the stock
// count; a Stock value sets it.
type UpdateRequest struct {
	Name            *string         `json:"name"              validate:"omitempty,min=1,max=200"`
	Description     *string         `json:"description"       validate:"omitempty,max=5000"`
	Price           *int64          `json:"price"             validate:"omitempty,gt=0"`
	Stock           *int            `json:"stock"             validate:"omitempty,gte=0"`
	UnlimitedStock  bool            `json:"unlimited_stock"`
	IsActive        *bool           `json:"is_active"`
	Type            *Type           `json:"product_type"      validate:"omitempty,oneof=physical role file code custom"`
	DeliveryMethod  *DeliveryMethod `json:"delivery_method"   validate:"omitempty,oneof=none auto_role download code_gen manual"`
	AutoDelivery    *bool           `json:"auto_delivery"`
	DeliveryConfig  DeliveryConfig  `json:"delivery_config"`
	Category        *string         `json:"category"          validate:"omitempty,max=50"`
	ImageURL        *string         `json:"image_url"         validate:"omitempty,max=500"`
	PreviewImageURL *string         `json:"preview_image_url" validate:"omitempty,max=500"`
}

// ProductResponse is the public view. Delivery config is admin-only
// because it can name private files.
type ProductResponse struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Price           int64          `json:"price"`
	Stock           *int           `json:"stock"`
	Available       bool           `json:"available"`
	Type            Type           `json:"product_type"`
	DeliveryMethod  DeliveryMethod `json:"delivery_method"`
	Category        string         `json:"category"`
	ImageURL        string         `json:"image_url,omitempty"`
	PreviewImageURL string         `json:"preview_image_url,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

type AdminProductResponse struct {
	ProductResponse
	IsActive       bool           `json:"is_active"`
	ArchivedAt     *time.Time     `json:"archived_at,omitempty"`
	AutoDelivery   bool           `json:"auto_delivery"`
	DeliveryConfig DeliveryConfig `json:"delivery_config"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type DeleteResponse struct {
	Deleted  bool `json:"deleted"`
	Archived bool `json:"archived"`
}

func ToProductResponse(p *Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Price:           p.Price,
		Stock:           p.Stock,
		Available:       p.Available(),
		Type:            p.Type,
		DeliveryMethod:  p.DeliveryMethod,
		Category:        p.Category,
		ImageURL:        p.ImageURL,
		PreviewImageURL: p.PreviewImageURL,
		CreatedAt:       p.CreatedAt,
	}
}

func ToProductResponseList(products []Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = ToProductResponse(&products[i])
	}
	return out
}

func ToAdminProductResponse(p *Product) AdminProductResponse {
	return AdminProductResponse{
		ProductResponse: ToProductResponse(p),
		IsActive:        p.IsActive,
		ArchivedAt:      p.ArchivedAt,
		AutoDelivery:    p.AutoDelivery,
		DeliveryConfig:  p.DeliveryConfig,
		UpdatedAt:       p.UpdatedAt,
	}
}

func ToAdminProductResponseList(products []Product) []AdminProductResponse {
	out := make([]AdminProductResponse, len(products))
	for i := range products {
		out[i] = ToAdminProductResponse(&products[i])
	}
	return out
}
