// AngelaMos | 2026
// repository.go

package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id int64) (*Product, error)
	LockForPurchase(ctx context.Context, id int64) (*Product, error)
	Update(ctx context.Context, p *Product) error
	DecrementStock(ctx context.Context, id int64) (*int, error)
	SetArchived(ctx context.Context, id int64, at *time.Time) error
	IsReferenced(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, params ListParams) ([]Product, int, error)
	Categories(ctx context.Context) ([]string, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const Columns = `id, name, description, price, stock, is_active, archived_at,
	product_type, delivery_method, auto_delivery, delivery_config, category,
	image_url, preview_image_url, created_at, updated_at`

func (r *repository) Create(ctx context.Context, p *Product) error {
	query := `
		INSERT INTO products (
			name, description, price, stock, is_active, product_type,
			delivery_method, auto_delivery, delivery_config, category,
			image_url, preview_image_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.IsActive,
		p.Type,
		p.DeliveryMethod,
		p.AutoDelivery,
		p.DeliveryConfig,
		p.Category,
		p.ImageURL,
		p.PreviewImageURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Product, error) {
	return r.get(ctx, `SELECT `+Columns+` FROM products WHERE id = $1`, id)
}

// LockForPurchase holds the product row lock until the transaction ends.
func (r *repository) LockForPurchase(ctx context.Context, id int64) (*Product, error) {
	return r.get(ctx, `SELECT `+Columns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) get(ctx context.Context, query string, id int64) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

func (r *repository) Update(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET name = $2,
		    description = $3,
		    price = $4,
		    stock = $5,
		    is_active = $6,
		    product_type = $7,
		    delivery_method = $8,
		    auto_delivery = $9,
		    delivery_config = $10,
		    category = $11,
		    image_url = $12,
		    preview_image_url = $13,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &p.UpdatedAt, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.IsActive,
		p.Type,
		p.DeliveryMethod,
		p.AutoDelivery,
		p.DeliveryConfig,
		p.Category,
		p.ImageURL,
		p.PreviewImageURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update product %d: %w", p.ID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return nil
}

// DecrementStock takes one unit from a finite stock and returns what is
// left. Callers must hold the row lock.
func (r *repository) DecrementStock(ctx context.Context, id int64) (*int, error) {
	query := `
		UPDATE products
		SET stock = stock - 1, updated_at = NOW()
		WHERE id = $1 AND stock IS NOT NULL AND stock > 0
		RETURNING stock`

	var left int
	err := r.db.GetContext(ctx, &left, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decrement stock %d: %w", id, core.ErrUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("decrement stock %d: %w", id, err)
	}
	return &left, nil
}

func (r *repository) SetArchived(ctx context.Context, id int64, at *time.Time) error {
	query := `
		UPDATE products
		SET archived_at = $2,
		    is_active = CASE WHEN $2::timestamptz IS NULL THEN is_active ELSE FALSE END,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("archive product %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive product %d: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("archive product %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *repository) IsReferenced(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM purchases WHERE product_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("product references %d: %w", id, err)
	}
	return exists, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("delete product %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *repository) List(ctx context.Context, params ListParams) ([]Product, int, error) {
	params.Normalize()

	var conds []string
	var args []any

	if !params.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if !params.IncludeArchived {
		conds = append(conds, "archived_at IS NULL")
	}
	if params.Category != "" {
		args = append(args, params.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if params.DeliveryMethod != "" {
		args = append(args, params.DeliveryMethod)
		conds = append(conds, fmt.Sprintf("delivery_method = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM products%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		Columns, where, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var products []Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

func (r *repository) Categories(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT category FROM products
		WHERE is_active = TRUE AND archived_at IS NULL
		ORDER BY category`

	var out []string
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}
