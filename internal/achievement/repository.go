// AngelaMos | 2026
// repository.go

package achievement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

type Repository interface {
	List(ctx context.Context) ([]Achievement, error)
	Create(ctx context.Context, a *Achievement) error
	ListForUser(ctx context.Context, userID string) ([]Held, error)
	Eligible(ctx context.Context, userID string, t Type, count int) ([]Achievement, error)
	Award(ctx context.Context, userID string, achievementID int64) (bool, error)
	Progress(ctx context.Context, userID string) (held, total int, unearned int64, err error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const columns = `id, name, description, points, achievement_type, requirement, created_at`

func (r *repository) List(ctx context.Context) ([]Achievement, error) {
	query := `SELECT ` + columns + ` FROM achievements
		ORDER BY achievement_type, requirement, id`

	var out []Achievement
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return out, nil
}

func (r *repository) Create(ctx context.Context, a *Achievement) error {
	query := `
		INSERT INTO achievements (name, description, points, achievement_type, requirement)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		a.Name,
		a.Description,
		a.Points,
		a.Type,
		a.Requirement,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("create achievement: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create achievement: %w", err)
	}
	return nil
}

func (r *repository) ListForUser(ctx context.Context, userID string) ([]Held, error) {
	query := `
		SELECT a.id, a.name, a.description, a.points, a.achievement_type,
		       a.requirement, a.created_at, ua.awarded_at
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.awarded_at DESC, a.id`

	var out []Held
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("list user achievements: %w", err)
	}
	return out, nil
}

// Eligible lists achievements of type t the member qualifies for at count
// and does not hold yet, lowest requirement first.
func (r *repository) Eligible(
	ctx context.Context,
	userID string,
	t Type,
	count int,
) ([]Achievement, error) {
	query := `
		SELECT ` + columns + ` FROM achievements a
		WHERE a.achievement_type = $2
		  AND a.requirement <= $3
		  AND NOT EXISTS (
		      SELECT 1 FROM user_achievements ua
		      WHERE ua.user_id = $1 AND ua.achievement_id = a.id
		  )
		ORDER BY a.requirement ASC, a.id ASC`

	var out []Achievement
	if err := r.db.SelectContext(ctx, &out, query, userID, t, count); err != nil {
		return nil, fmt.Errorf("eligible achievements: %w", err)
	}
	return out, nil
}

// Award inserts the (user, achievement) pair. It reports false when the
// pair already exists; the conflict never aborts the transaction.
func (r *repository) Award(ctx context.Context, userID string, achievementID int64) (bool, error) {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
		RETURNING id`

	var id int64
	err := r.db.GetContext(ctx, &id, query, userID, achievementID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	return true, nil
}

func (r *repository) Progress(
	ctx context.Context,
	userID string,
) (int, int, int64, error) {
	query := `
		SELECT
			COUNT(ua.id) AS held,
			COUNT(a.id) AS total,
			COALESCE(SUM(a.points) FILTER (WHERE ua.id IS NULL), 0) AS unearned
		FROM achievements a
		LEFT JOIN user_achievements ua
		  ON ua.achievement_id = a.id AND ua.user_id = $1`

	var row struct {
		Held     int   `db:"held"`
		Total    int   `db:"total"`
		Unearned int64 `db:"unearned"`
	}
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return 0, 0, 0, fmt.Errorf("achievement progress: %w", err)
	}
	return row.Held, row.Total, row.Unearned, nil
}
