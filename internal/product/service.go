// AngelaMos | 2026
// service.go

package product

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

const defaultCategory = "general"

type Service struct {
	repo  Repository
	clock core.Clock
}

func NewService(repo Repository, clock core.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

// Browse lists products that are active and not archived.
func (s *Service) Browse(ctx context.Context, params ListParams) ([]Product, int, error) {
	params.IncludeInactive = false
	params.IncludeArchived = false
	return s.repo.List(ctx, params)
}

func (s *Service) AdminList(ctx context.Context, params ListParams) ([]Product, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// Get returns a product for the storefront. Inactive and archived
// products are reported as not found.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive || p.IsArchived() {
		return nil, fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	return p, nil
}

func (s *Service) AdminGet(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	p := &Product{
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		Stock:           req.Stock,
		IsActive:        true,
		Type:            req.Type,
		DeliveryMethod:  req.DeliveryMethod,
		AutoDelivery:    req.DeliveryMethod.Automated(),
		DeliveryConfig:  req.DeliveryConfig,
		Category:        req.Category,
		ImageURL:        req.ImageURL,
		PreviewImageURL: req.PreviewImageURL,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.AutoDelivery != nil {
		p.AutoDelivery = *req.AutoDelivery
	}
	if p.Category == "" {
		p.Category = defaultCategory
	}
	if p.DeliveryConfig == nil {
		p.DeliveryConfig = DeliveryConfig{}
	}

	if err := p.ValidateDelivery(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("product created", "product_id", p.ID, "name", p.Name, "price", p.Price)
	return p, nil
}

// Update applies a partial edit. Prices captured by past purchases are
// unaffected.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.UnlimitedStock {
		p.Stock = nil
	} else if req.Stock != nil {
		stock := *req.Stock
		p.Stock = &stock
	}
	if req.IsActive != nil {
		if *req.IsActive && p.IsArchived() {
			return nil, fmt.Errorf("activate archived product %d: %w", id, core.ErrInvalidInput)
		}
		p.IsActive = *req.IsActive
	}
	if req.Type != nil {
		p.Type = *req.Type
	}
	if req.DeliveryMethod != nil {
		p.DeliveryMethod = *req.DeliveryMethod
	}
	if req.AutoDelivery != nil {
		p.AutoDelivery = *req.AutoDelivery
	}
	if req.DeliveryConfig != nil {
		p.DeliveryConfig = req.DeliveryConfig
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.ImageURL != nil {
		p.ImageURL = *req.ImageURL
	}
	if req.PreviewImageURL != nil {
		p.PreviewImageURL = *req.PreviewImageURL
	}

	if err := p.ValidateDelivery(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Archive(ctx context.Context, id int64) error {
	now := s.clock.Now()
	if err := s.repo.SetArchived(ctx, id, &now); err != nil {
		return err
	}
	slog.Info("product archived", "product_id", id)
	return nil
}

// Restore un-archives a product. It stays inactive until an admin turns it
// back on.
func (s *Service) Restore(ctx context.Context, id int64) error {
	if err := s.repo.SetArchived(ctx, id, nil); err != nil {
		return err
	}
	slog.Info("product restored", "product_id", id)
	return nil
}

// Delete removes a product nobody bought. Once a purchase references it
// the product is archived instead.
func (s *Service) Delete(ctx context.Context, id int64) (DeleteResponse, error) {
	referenced, err := s.repo.IsReferenced(ctx, id)
	if err != nil {
		return DeleteResponse{}, err
	}

	if referenced {
		if err := s.Archive(ctx, id); err != nil {
			return DeleteResponse{}, err
		}
		return DeleteResponse{Archived: true}, nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return DeleteResponse{}, err
	}

	slog.Info("product deleted", "product_id", id)
	return DeleteResponse{Deleted: true}, nil
}
