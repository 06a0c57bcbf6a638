// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

// Columns lists every users column in scan order. The ledger selects the
// same set when it locks a row.
const Columns = `id, username, avatar_url, user_uuid, is_admin, balance,
	points_earned, message_count, reaction_count, voice_minutes,
	verified_bonus_received, onboarding_bonus_received,
	enrollment_deposit_received, birthday_points_received, has_boosted,
	last_daily, last_daily_engagement, daily_claims_count,
	campus_photos_count, daily_engagement_count, birthday_month,
	birthday_day, token_version, created_at, updated_at`

type Repository interface {
	Ensure(ctx context.Context, p Profile) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	AdminLeaderboard(
		ctx context.Context,
		params ListUsersParams,
	) ([]AdminLeaderboardEntry, int, error)
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	IncrementTokenVersion(ctx context.Context, id string) error
	ListByBirthday(ctx context.Context, month, day int) ([]User, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Ensure creates the row on first sight and refreshes the display fields
// on later sightings. Empty profile fields never overwrite stored ones.
func (r *repository) Ensure(ctx context.Context, p Profile) (*User, error) {
	query := `
		INSERT INTO users (id, username, avatar_url, user_uuid)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
		    avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), users.avatar_url),
		    updated_at = NOW()
		RETURNING ` + Columns

	var u User
	err := r.db.GetContext(ctx, &u, query, p.ID, p.Username, p.AvatarURL, uuid.New())
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	return &u, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + Columns + ` FROM users WHERE id = $1`

	var u User
	err := r.db.GetContext(ctx, &u, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

func (r *repository) Leaderboard(
	ctx context.Context,
	limit int,
) ([]LeaderboardEntry, error) {
	query := `
		SELECT id, username, avatar_url, balance
		FROM users
		WHERE NOT is_admin
		ORDER BY balance DESC, id ASC
		LIMIT $1`

	var entries []LeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries, nil
}

func (r *repository) AdminLeaderboard(
	ctx context.Context,
	params ListUsersParams,
) ([]AdminLeaderboardEntry, int, error) {
	params.Normalize()

	where, args := searchClause(params.Search, 1)

	var total int
	countQuery := `SELECT COUNT(*) FROM users u` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count leaderboard: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT u.id, u.username, u.is_admin, u.balance, u.points_earned,
		       u.message_count, u.reaction_count, u.voice_minutes,
		       COALESCE(p.total_spent, 0) AS total_spent,
		       COALESCE(p.purchase_count, 0) AS purchase_count,
		       COALESCE(a.achievement_count, 0) AS achievement_count
		FROM users u
		LEFT JOIN (
			SELECT user_id, SUM(points_spent) AS total_spent, COUNT(*) AS purchase_count
			FROM purchases
			WHERE status <> 'failed'
			GROUP BY user_id
		) p ON p.user_id = u.id
		LEFT JOIN (
			SELECT user_id, COUNT(*) AS achievement_count
			FROM user_achievements
			GROUP BY user_id
		) a ON a.user_id = u.id
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		where, orderClause(params.Sort), len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var entries []AdminLeaderboardEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("admin leaderboard: %w", err)
	}

	return entries, total, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	where, args := searchClause(params.Search, 1)

	var total int
	countQuery := `SELECT COUNT(*) FROM users u` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	order := "u.created_at DESC, u.id ASC"
	if params.Sort != SortRecent {
		order = "u.balance DESC, u.id ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users u
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		prefixed("u", Columns), where, order, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	query := `
		UPDATE users
		SET is_admin = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, isAdmin)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set admin: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("increment token version: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ListByBirthday(
	ctx context.Context,
	month, day int,
) ([]User, error) {
	query := `SELECT ` + Columns + `
		FROM users
		WHERE birthday_month = $1 AND birthday_day = $2
		ORDER BY id ASC`

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, month, day); err != nil {
		return nil, fmt.Errorf("list birthdays: %w", err)
	}

	return users, nil
}

func searchClause(search string, argIdx int) (string, []any) {
	if search == "" {
		return "", nil
	}
	clause := fmt.Sprintf(" WHERE (u.username ILIKE $%d OR u.id = $%d)", argIdx, argIdx+1)
	return clause, []any{"%" + escapeLike(search) + "%", search}
}

func orderClause(sort string) string {
	switch sort {
	case SortEarned:
		return "u.points_earned DESC, u.id ASC"
	case SortSpent:
		return "total_spent DESC, u.id ASC"
	case SortRecent:
		return "u.created_at DESC, u.id ASC"
	default:
		return "u.balance DESC, u.id ASC"
	}
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
