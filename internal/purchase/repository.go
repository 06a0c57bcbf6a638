// AngelaMos | 2026
// repository.go

package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

type Repository interface {
	Create(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id int64) (*Purchase, error)
	SetDelivery(ctx context.Context, id int64, status Status, info string) error
	Resolve(ctx context.Context, id int64, status Status, info string) (bool, error)
	List(ctx context.Context, params ListParams) ([]Detail, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const columns = `id, user_id, product_id, points_spent, status, delivery_info, created_at, updated_at`

func (r *repository) Create(ctx context.Context, p *Purchase) error {
	query := `
		INSERT INTO purchases (user_id, product_id, points_spent, status, delivery_info)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.UserID,
		p.ProductID,
		p.PointsSpent,
		p.Status,
		p.DeliveryInfo,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Purchase, error) {
	var p Purchase
	err := r.db.GetContext(ctx, &p, `SELECT `+columns+` FROM purchases WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("purchase %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase %d: %w", id, err)
	}
	return &p, nil
}

// SetDelivery records the delivery outcome on a purchase created in the
// same transaction.
func (r *repository) SetDelivery(ctx context.Context, id int64, status Status, info string) error {
	query := `
		UPDATE purchases
		SET status = $2, delivery_info = $3, updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, status, info); err != nil {
		return fmt.Errorf("set purchase %d delivery: %w", id, err)
	}
	return nil
}

// Resolve moves a pending purchase to a terminal status. It reports false
// when the purchase is already terminal.
func (r *repository) Resolve(ctx context.Context, id int64, status Status, info string) (bool, error) {
	query := `
		UPDATE purchases
		SET status = $2, delivery_info = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_delivery'`

	result, err := r.db.ExecContext(ctx, query, id, status, info)
	if err != nil {
		return false, fmt.Errorf("resolve purchase %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve purchase %d: %w", id, err)
	}
	return rows > 0, nil
}

func (r *repository) List(ctx context.Context, params ListParams) ([]Detail, int, error) {
	var (
		conds []string
		args  []any
	)
	if params.UserID != "" {
		args = append(args, params.UserID)
		conds = append(conds, fmt.Sprintf("p.user_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, params.Status)
		conds = append(conds, fmt.Sprintf("p.status = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM purchases p`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.user_id, p.product_id, p.points_spent, p.status,
		       p.delivery_info, p.created_at, p.updated_at,
		       pr.name AS product_name,
		       pr.product_type,
		       pr.delivery_method,
		       u.username
		FROM purchases p
		JOIN products pr ON pr.id = p.product_id
		JOIN users u ON u.id = p.user_id%s
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, params.Offset())

	var out []Detail
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	return out, total, nil
}
