// AngelaMos | 2026
// entity.go

package fulfillment

import (
	"errors"
	"time"
)

type RoleStatus string

const (
	RolePending   RoleStatus = "pending"
	RoleCompleted RoleStatus = "completed"
	RoleFailed    RoleStatus = "failed"
)

// Purchase statuses written when a delivery finishes. They mirror the
// purchase package's values.
const (
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
)

type RoleAssignment struct {
	ID            int64      `db:"id"`
	UserID        string     `db:"user_id"`
	RoleID        string     `db:"role_id"`
	PurchaseID    int64      `db:"purchase_id"`
	Status        RoleStatus `db:"status"`
	Attempts      int        `db:"attempts"`
	NextAttemptAt time.Time  `db:"next_attempt_at"`
	LockedUntil   *time.Time `db:"locked_until"`
	Error         string     `db:"error"`
	CreatedAt     time.Time  `db:"created_at"`
	CompletedAt   *time.Time `db:"completed_at"`
}

type DownloadToken struct {
	ID               int64      `db:"id"`
	Token            string     `db:"token"`
	UserID           string     `db:"user_id"`
	PurchaseID       int64      `db:"purchase_id"`
	FilePath         string     `db:"file_path"`
	OriginalFilename string     `db:"original_filename"`
	Downloaded       bool       `db:"downloaded"`
	DownloadCount    int        `db:"download_count"`
	CreatedAt        time.Time  `db:"created_at"`
	ExpiresAt        time.Time  `db:"expires_at"`
	LastDownloadedAt *time.Time `db:"last_downloaded_at"`
}

// Usable reports whether the token may still be redeemed at now.
func (t *DownloadToken) Usable(now time.Time, maxUses int) bool {
	return !now.After(t.ExpiresAt) && t.DownloadCount < maxUses
}

func (t *DownloadToken) URL() string {
	return DownloadPath(t.Token)
}

func DownloadPath(token string) string {
	return "/download/" + token
}

// MissingToken is a completed download purchase with no token on record.
type MissingToken struct {
	PurchaseID int64  `db:"purchase_id"`
	UserID     string `db:"user_id"`
	FilePath   string `db:"file_path"`
	FileName   string `db:"file_name"`
}

// Reasons a download is refused. Callers log the distinction; users see
// one generic outcome.
var (
	ErrTokenUnknown  = errors.New("download token unknown")
	ErrTokenExpired  = errors.New("download token expired")
	ErrTokenConsumed = errors.New("download token used up")
	ErrTokenForeign  = errors.New("download token belongs to another user")
	ErrFileMissing   = errors.New("download file missing")
)
