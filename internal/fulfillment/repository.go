// AngelaMos | 2026
// repository.go

package fulfillment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

type Repository interface {
	InsertRoleAssignment(ctx context.Context, a *RoleAssignment) error
	GetRoleAssignment(ctx context.Context, id int64) (*RoleAssignment, error)
	ClaimRoleAssignments(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]RoleAssignment, error)
	CompleteRoleAssignment(ctx context.Context, id int64, now time.Time) (bool, error)
	FailRoleAssignment(ctx context.Context, id int64, reason string) (bool, error)
	RescheduleRoleAssignment(ctx context.Context, id int64, next time.Time, reason string) error
	ListRoleAssignments(ctx context.Context, status RoleStatus, limit, offset int) ([]RoleAssignment, int, error)
	FinishPurchase(ctx context.Context, purchaseID int64, status, info string) (bool, error)

	InsertDownloadToken(ctx context.Context, t *DownloadToken) error
	GetDownloadToken(ctx context.Context, token string) (*DownloadToken, error)
	RedeemDownloadToken(ctx context.Context, token, userID string, now time.Time, maxUses int) (*DownloadToken, error)
	ActiveTokens(ctx context.Context, userID string, now time.Time) ([]DownloadToken, error)
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
	PurchasesMissingTokens(ctx context.Context, limit int) ([]MissingToken, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const roleColumns = `id, user_id, role_id, purchase_id, status, attempts,
	next_attempt_at, locked_until, error, created_at, completed_at`

const tokenColumns = `id, token, user_id, purchase_id, file_path, original_filename,
	downloaded, download_count, created_at, expires_at, last_downloaded_at`

func (r *repository) InsertRoleAssignment(ctx context.Context, a *RoleAssignment) error {
	query := `
		INSERT INTO role_assignments (user_id, role_id, purchase_id, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, status, attempts, next_attempt_at, created_at`

	err := r.db.QueryRowxContext(ctx, query, a.UserID, a.RoleID, a.PurchaseID).
		Scan(&a.ID, &a.Status, &a.Attempts, &a.NextAttemptAt, &a.CreatedAt)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("insert role assignment: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("insert role assignment: %w", err)
	}
	return nil
}

func (r *repository) GetRoleAssignment(ctx context.Context, id int64) (*RoleAssignment, error) {
	var a RoleAssignment
	err := r.db.GetContext(ctx, &a, `SELECT `+roleColumns+` FROM role_assignments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role assignment %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get role assignment %d: %w", id, err)
	}
	return &a, nil
}

// ClaimRoleAssignments leases up to limit due records. Rows locked by a
// concurrent claimer are skipped, and the lease keeps them out of other
// claims after this transaction commits.
func (r *repository) ClaimRoleAssignments(
	ctx context.Context,
	now time.Time,
	lease time.Duration,
	limit int,
) ([]RoleAssignment, error) {
	query := `
		UPDATE role_assignments
		SET locked_until = $2, attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM role_assignments
			WHERE status = 'pending'
			  AND next_attempt_at <= $1
			  AND (locked_until IS NULL OR locked_until < $1)
			ORDER BY next_attempt_at, id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + roleColumns

	var out []RoleAssignment
	if err := r.db.SelectContext(ctx, &out, query, now, now.Add(lease), limit); err != nil {
		return nil, fmt.Errorf("claim role assignments: %w", err)
	}
	return out, nil
}

func (r *repository) CompleteRoleAssignment(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE role_assignments
		SET status = 'completed', completed_at = $2, locked_until = NULL, error = ''
		WHERE id = $1 AND status = 'pending'`

	return r.guarded(ctx, "complete role assignment", query, id, now)
}

func (r *repository) FailRoleAssignment(ctx context.Context, id int64, reason string) (bool, error) {
	query := `
		UPDATE role_assignments
		SET status = 'failed', locked_until = NULL, error = $2
		WHERE id = $1 AND status = 'pending'`

	return r.guarded(ctx, "fail role assignment", query, id, reason)
}

func (r *repository) RescheduleRoleAssignment(
	ctx context.Context,
	id int64,
	next time.Time,
	reason string,
) error {
	query := `
		UPDATE role_assignments
		SET next_attempt_at = $2, locked_until = NULL, error = $3
		WHERE id = $1 AND status = 'pending'`

	if _, err := r.db.ExecContext(ctx, query, id, next, reason); err != nil {
		return fmt.Errorf("reschedule role assignment %d: %w", id, err)
	}
	return nil
}

func (r *repository) ListRoleAssignments(
	ctx context.Context,
	status RoleStatus,
	limit, offset int,
) ([]RoleAssignment, int, error) {
	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM role_assignments`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count role assignments: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM role_assignments%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, roleColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var out []RoleAssignment
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list role assignments: %w", err)
	}
	return out, total, nil
}

// FinishPurchase moves a pending purchase to a terminal status. Terminal
// purchases are never touched again.
func (r *repository) FinishPurchase(
	ctx context.Context,
	purchaseID int64,
	status, info string,
) (bool, error) {
	query := `
		UPDATE purchases
		SET status = $2, delivery_info = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_delivery'`

	return r.guarded(ctx, "finish purchase", query, purchaseID, status, info)
}

func (r *repository) guarded(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rows > 0, nil
}

func (r *repository) InsertDownloadToken(ctx context.Context, t *DownloadToken) error {
	query := `
		INSERT INTO download_tokens (
			token, user_id, purchase_id, file_path, original_filename,
			created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		t.Token,
		t.UserID,
		t.PurchaseID,
		t.FilePath,
		t.OriginalFilename,
		t.CreatedAt,
		t.ExpiresAt,
	).Scan(&t.ID)
	if err != nil {
		if core.IsDuplicateKey(err) {
			return fmt.Errorf("insert download token: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("insert download token: %w", err)
	}
	return nil
}

func (r *repository) GetDownloadToken(ctx context.Context, token string) (*DownloadToken, error) {
	var t DownloadToken
	err := r.db.GetContext(ctx, &t, `SELECT `+tokenColumns+` FROM download_tokens WHERE token = $1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("get download token: %w", err)
	}
	return &t, nil
}

// RedeemDownloadToken counts one download if every guard holds, in a
// single statement. It returns core.ErrNotFound when any guard fails.
func (r *repository) RedeemDownloadToken(
	ctx context.Context,
	token, userID string,
	now time.Time,
	maxUses int,
) (*DownloadToken, error) {
	query := `
		UPDATE download_tokens
		SET download_count = download_count + 1,
		    downloaded = TRUE,
		    last_downloaded_at = $3
		WHERE token = $1
		  AND user_id = $2
		  AND $3 <= expires_at
		  AND download_count < $4
		RETURNING ` + tokenColumns

	var t DownloadToken
	err := r.db.GetContext(ctx, &t, query, token, userID, now, maxUses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redeem download token: %w", err)
	}
	return &t, nil
}

func (r *repository) ActiveTokens(ctx context.Context, userID string, now time.Time) ([]DownloadToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM download_tokens
		WHERE user_id = $1 AND expires_at >= $2
		ORDER BY created_at DESC`

	var out []DownloadToken
	if err := r.db.SelectContext(ctx, &out, query, userID, now); err != nil {
		return nil, fmt.Errorf("active download tokens: %w", err)
	}
	return out, nil
}

func (r *repository) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM download_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return n, nil
}

func (r *repository) PurchasesMissingTokens(ctx context.Context, limit int) ([]MissingToken, error) {
	query := `
		SELECT pu.id AS purchase_id,
		       pu.user_id,
		       COALESCE(pr.delivery_config->>'file_path', '') AS file_path,
		       COALESCE(pr.delivery_config->>'file_name', '') AS file_name
		FROM purchases pu
		JOIN products pr ON pr.id = pu.product_id
		WHERE pr.delivery_method = 'download'
		  AND pr.auto_delivery
		  AND pu.status = 'completed'
		  AND NOT EXISTS (SELECT 1 FROM download_tokens dt WHERE dt.purchase_id = pu.id)
		ORDER BY pu.id
		LIMIT $1`

	var out []MissingToken
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("purchases missing tokens: %w", err)
	}
	return out, nil
}
