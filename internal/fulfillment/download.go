// AngelaMos | 2026
// download.go

package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

const backfillBatch = 500

type DownloadConfig struct {
	UploadDir string
	TokenTTL  time.Duration
	MaxUses   int
}

type IssueRequest struct {
	UserID     string
	PurchaseID int64
	FilePath   string
	FileName   string
}

type DownloadService struct {
	db      core.DBTX
	newRepo func(core.DBTX) Repository
	clock   core.Clock
	cfg     DownloadConfig
}

func NewDownloadService(
	db core.DBTX,
	newRepo func(core.DBTX) Repository,
	clock core.Clock,
	cfg DownloadConfig,
) *DownloadService {
	if cfg.MaxUses < 1 {
		cfg.MaxUses = 1
	}
	return &DownloadService{db: db, newRepo: newRepo, clock: clock, cfg: cfg}
}

// Issue creates a fresh token on db, which is normally the purchase
// transaction.
func (s *DownloadService) Issue(ctx context.Context, db core.DBTX, req IssueRequest) (*DownloadToken, error) {
	token, err := core.GenerateDownloadToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	t := &DownloadToken{
		Token:            token,
		UserID:           req.UserID,
		PurchaseID:       req.PurchaseID,
		FilePath:         req.FilePath,
		OriginalFilename: req.FileName,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.TokenTTL),
	}

	if err := s.newRepo(db).InsertDownloadToken(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Redeem counts one download against token for userID and returns the
// file path to serve. Refusals carry one of the ErrToken* reasons. A token
// whose file is gone fails with ErrFileMissing and keeps its uses.
func (s *DownloadService) Redeem(ctx context.Context, token, userID string) (*DownloadToken, string, error) {
	if token == "" {
		return nil, "", ErrTokenUnknown
	}

	repo := s.newRepo(s.db)
	now := s.clock.Now()

	existing, err := repo.GetDownloadToken(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if err := refusal(existing, userID, now, s.cfg.MaxUses); err != nil {
		return nil, "", err
	}

	path, err := s.Resolve(existing.FilePath)
	if err != nil {
		return existing, "", err
	}

	t, err := repo.RedeemDownloadToken(ctx, token, userID, now, s.cfg.MaxUses)
	if errors.Is(err, core.ErrNotFound) {
		return nil, "", ErrTokenConsumed
	}
	if err != nil {
		return nil, "", err
	}
	return t, path, nil
}

func refusal(t *DownloadToken, userID string, now time.Time, maxUses int) error {
	switch {
	case t.UserID != userID:
		return ErrTokenForeign
	case t.Usable(now, maxUses):
		return nil
	case now.After(t.ExpiresAt):
		return ErrTokenExpired
	default:
		return ErrTokenConsumed
	}
}

// Resolve maps a stored file reference to a path under the upload
// directory. References that escape it are rejected.
func (s *DownloadService) Resolve(ref string) (string, error) {
	root, err := filepath.Abs(s.cfg.UploadDir)
	if err != nil {
		return "", fmt.Errorf("resolve upload dir: %w", err)
	}

	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(ref, "/")))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file reference %q: %w", ref, core.ErrForbidden)
	}

	full := filepath.Join(root, clean)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file reference %q: %w", ref, core.ErrForbidden)
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("file reference %q: %w", ref, ErrFileMissing)
	}

	return full, nil
}

func (s *DownloadService) ActiveTokens(ctx context.Context, userID string) ([]DownloadToken, error) {
	return s.newRepo(s.db).ActiveTokens(ctx, userID, s.clock.Now())
}

// BackfillMissingTokens issues tokens for completed download purchases
// that never got one.
func (s *DownloadService) BackfillMissingTokens(ctx context.Context) (int, error) {
	missing, err := s.newRepo(s.db).PurchasesMissingTokens(ctx, backfillBatch)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, m := range missing {
		if m.FilePath == "" {
			slog.Warn("download purchase has no file configured", "purchase_id", m.PurchaseID)
			continue
		}

		if _, err := s.Issue(ctx, s.db, IssueRequest{
			UserID:     m.UserID,
			PurchaseID: m.PurchaseID,
			FilePath:   m.FilePath,
			FileName:   m.FileName,
		}); err != nil {
			return created, err
		}
		created++
	}

	if created > 0 {
		slog.Info("download tokens backfilled", "count", created)
	}
	return created, nil
}
