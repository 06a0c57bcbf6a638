// AngelaMos | 2026
// catalog.go

package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
)

func (s *Store) Products(core.DBTX) product.Repository {
	return productRepo{s}
}

func (s *Store) Purchases(core.DBTX) purchase.Repository {
	return purchaseRepo{s}
}

func (s *Store) Product(id int64) (product.Product, bool) {
	var (
		p  product.Product
		ok bool
	)
	s.locked(func(st *state) { p, ok = st.products[id] })
	return p, ok
}

// PurchasesOf returns every purchase userID made, oldest first.
func (s *Store) PurchasesOf(userID string) []purchase.Purchase {
	var out []purchase.Purchase
	s.locked(func(st *state) {
		for _, p := range st.purchases {
			if p.UserID == userID {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func intPtr(v int) *int {
	return &v
}

func copyStock(p product.Product) product.Product {
	if p.Stock != nil {
		p.Stock = intPtr(*p.Stock)
	}
	return p
}

type productRepo struct{ s *Store }

func (r productRepo) Create(_ context.Context, p *product.Product) error {
	r.s.locked(func(st *state) {
		now := r.s.now()
		p.ID = r.s.nextID()
		p.CreatedAt = now
		p.UpdatedAt = now
		if p.Category == "" {
			p.Category = "general"
		}
		st.products[p.ID] = copyStock(*p)
	})
	return nil
}

func (r productRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := r.s.Product(id)
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	p = copyStock(p)
	return &p, nil
}

func (r productRepo) LockForPurchase(ctx context.Context, id int64) (*product.Product, error) {
	return r.GetByID(ctx, id)
}

func (r productRepo) Update(_ context.Context, p *product.Product) error {
	var found bool
	r.s.locked(func(st *state) {
		old, ok := st.products[p.ID]
		if !ok {
			return
		}
		found = true
		p.CreatedAt = old.CreatedAt
		p.ArchivedAt = old.ArchivedAt
		p.UpdatedAt = r.s.now()
		st.products[p.ID] = copyStock(*p)
	})
	if !found {
		return fmt.Errorf("update product %d: %w", p.ID, core.ErrNotFound)
	}
	return nil
}

func (r productRepo) DecrementStock(_ context.Context, id int64) (*int, error) {
	var left *int
	r.s.locked(func(st *state) {
		p, ok := st.products[id]
		if !ok || p.Stock == nil || *p.Stock <= 0 {
			return
		}
		p.Stock = intPtr(*p.Stock - 1)
		p.UpdatedAt = r.s.now()
		st.products[id] = p
		left = intPtr(*p.Stock)
	})
	if left == nil {
		return nil, fmt.Errorf("decrement stock %d: %w", id, core.ErrUnavailable)
	}
	return left, nil
}

func (r productRepo) SetArchived(_ context.Context, id int64, at *time.Time) error {
	var found bool
	r.s.locked(func(st *state) {
		p, ok := st.products[id]
		if !ok {
			return
		}
		found = true
		p.ArchivedAt = at
		if at != nil {
			p.IsActive = false
		}
		p.UpdatedAt = r.s.now()
		st.products[id] = p
	})
	if !found {
		return fmt.Errorf("archive product %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r productRepo) IsReferenced(_ context.Context, id int64) (bool, error) {
	var found bool
	r.s.locked(func(st *state) {
		for _, p := range st.purchases {
			if p.ProductID == id {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r productRepo) Delete(_ context.Context, id int64) error {
	var found bool
	r.s.locked(func(st *state) {
		if _, found = st.products[id]; found {
			delete(st.products, id)
		}
	})
	if !found {
		return fmt.Errorf("delete product %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r productRepo) List(_ context.Context, params product.ListParams) ([]product.Product, int, error) {
	params.Normalize()

	var out []product.Product
	r.s.locked(func(st *state) {
		for _, p := range st.products {
			if !params.IncludeInactive && !p.IsActive {
				continue
			}
			if !params.IncludeArchived && p.ArchivedAt != nil {
				continue
			}
			if params.Category != "" && p.Category != params.Category {
				continue
			}
			if params.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(params.Search)) {
				continue
			}
			if params.DeliveryMethod != "" && p.DeliveryMethod != params.DeliveryMethod {
				continue
			}
			out = append(out, copyStock(p))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return paginate(out, params.PageSize, params.Offset()), len(out), nil
}

func (r productRepo) Categories(context.Context) ([]string, error) {
	seen := map[string]bool{}
	r.s.locked(func(st *state) {
		for _, p := range st.products {
			if p.IsActive && p.ArchivedAt == nil {
				seen[p.Category] = true
			}
		}
	})
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

type purchaseRepo struct{ s *Store }

func (r purchaseRepo) Create(_ context.Context, p *purchase.Purchase) error {
	r.s.locked(func(st *state) {
		now := r.s.now()
		p.ID = r.s.nextID()
		p.CreatedAt = now
		p.UpdatedAt = now
		st.purchases[p.ID] = *p
	})
	return nil
}

func (r purchaseRepo) GetByID(_ context.Context, id int64) (*purchase.Purchase, error) {
	var (
		p  purchase.Purchase
		ok bool
	)
	r.s.locked(func(st *state) { p, ok = st.purchases[id] })
	if !ok {
		return nil, fmt.Errorf("purchase %d: %w", id, core.ErrNotFound)
	}
	return &p, nil
}

func (r purchaseRepo) SetDelivery(_ context.Context, id int64, status purchase.Status, info string) error {
	r.s.locked(func(st *state) {
		if p, ok := st.purchases[id]; ok {
			p.Status = status
			p.DeliveryInfo = info
			p.UpdatedAt = r.s.now()
			st.purchases[id] = p
		}
	})
	return nil
}

func (r purchaseRepo) Resolve(_ context.Context, id int64, status purchase.Status, info string) (bool, error) {
	return r.s.finishPurchase(id, string(status), info), nil
}

func (s *Store) finishPurchase(id int64, status, info string) bool {
	moved := false
	s.locked(func(st *state) {
		p, ok := st.purchases[id]
		if !ok || p.Status != purchase.StatusPendingDelivery {
			return
		}
		p.Status = purchase.Status(status)
		p.DeliveryInfo = info
		p.UpdatedAt = s.now()
		st.purchases[id] = p
		moved = true
	})
	return moved
}

func (r purchaseRepo) List(_ context.Context, params purchase.ListParams) ([]purchase.Detail, int, error) {
	params.Normalize()

	var out []purchase.Detail
	r.s.locked(func(st *state) {
		for _, p := range st.purchases {
			if params.UserID != "" && p.UserID != params.UserID {
				continue
			}
			if params.Status != "" && p.Status != params.Status {
				continue
			}
			pr := st.products[p.ProductID]
			out = append(out, purchase.Detail{
				Purchase:       p,
				ProductName:    pr.Name,
				ProductType:    string(pr.Type),
				DeliveryMethod: string(pr.DeliveryMethod),
				Username:       st.users[p.UserID].Username,
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return paginate(out, params.PageSize, params.Offset()), len(out), nil
}
