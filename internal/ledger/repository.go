// AngelaMos | 2026
// repository.go

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

type Repository interface {
	LockUser(ctx context.Context, userID string) (*user.User, error)
	GetUser(ctx context.Context, userID string) (*user.User, error)
	SaveUser(ctx context.Context, u *user.User) error
	InsertEntry(ctx context.Context, e *Entry) error
	HasGrant(ctx context.Context, userID, grantKey string) (bool, error)
	UserIDsAfter(ctx context.Context, afterID string, limit int) ([]string, error)
	History(ctx context.Context, userID string, limit int) ([]Entry, error)
	Totals(ctx context.Context) (*Totals, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// LockUser creates the row if this is the first sighting and then holds
// its row lock until the surrounding transaction ends.
func (r *repository) LockUser(ctx context.Context, userID string) (*user.User, error) {
	insert := `
		INSERT INTO users (id, user_uuid)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, insert, userID, uuid.New()); err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}

	query := `SELECT ` + user.Columns + ` FROM users WHERE id = $1 FOR UPDATE`

	var u user.User
	err := r.db.GetContext(ctx, &u, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lock user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}

	return &u, nil
}

// GetUser reads the row without locking or creating it.
func (r *repository) GetUser(ctx context.Context, userID string) (*user.User, error) {
	query := `SELECT ` + user.Columns + ` FROM users WHERE id = $1`

	var u user.User
	err := r.db.GetContext(ctx, &u, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *repository) SaveUser(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET balance = $2,
		    points_earned = $3,
		    message_count = $4,
		    reaction_count = $5,
		    voice_minutes = $6,
		    verified_bonus_received = $7,
		    onboarding_bonus_received = $8,
		    enrollment_deposit_received = $9,
		    birthday_points_received = $10,
		    last_daily = $11,
		    last_daily_engagement = $12,
		    daily_claims_count = $13,
		    campus_photos_count = $14,
		    daily_engagement_count = $15,
		    birthday_month = $16,
		    birthday_day = $17,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &u.UpdatedAt, query,
		u.ID,
		u.Balance,
		u.PointsEarned,
		u.MessageCount,
		u.ReactionCount,
		u.VoiceMinutes,
		u.VerifiedBonusReceived,
		u.OnboardingBonusReceived,
		u.EnrollmentDepositReceived,
		u.BirthdayPointsReceived,
		u.LastDaily,
		u.LastDailyEngagement,
		u.DailyClaimsCount,
		u.CampusPhotosCount,
		u.DailyEngagementCount,
		u.BirthdayMonth,
		u.BirthdayDay,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("save user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	return nil
}

func (r *repository) InsertEntry(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO ledger_entries (user_id, amount, reason, grant_key, balance_after)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		e.UserID,
		e.Amount,
		e.Reason,
		e.GrantKey,
		e.BalanceAfter,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("insert ledger entry: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	return nil
}

func (r *repository) HasGrant(ctx context.Context, userID, grantKey string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM ledger_entries WHERE user_id = $1 AND grant_key = $2
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, grantKey); err != nil {
		return false, fmt.Errorf("has grant: %w", err)
	}
	return exists, nil
}

func (r *repository) UserIDsAfter(
	ctx context.Context,
	afterID string,
	limit int,
) ([]string, error) {
	query := `
		SELECT id FROM users
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

func (r *repository) History(
	ctx context.Context,
	userID string,
	limit int,
) ([]Entry, error) {
	query := `
		SELECT id, user_id, amount, reason, grant_key, balance_after, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2`

	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	return entries, nil
}

func (r *repository) Totals(ctx context.Context) (*Totals, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COALESCE(SUM(balance), 0) FROM users) AS circulating,
			(SELECT COALESCE(SUM(points_earned), 0) FROM users) AS ever_earned,
			(SELECT COUNT(*) FROM ledger_entries) AS entries,
			(SELECT COUNT(DISTINCT user_id) FROM ledger_entries
			  WHERE amount > 0 AND created_at > NOW() - INTERVAL '7 days') AS active_earners_7d`

	var t Totals
	if err := r.db.GetContext(ctx, &t, query); err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}
	return &t, nil
}
