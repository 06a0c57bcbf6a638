// AngelaMos | 2026
// repository.go

package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	GetForUpdate(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
	SetEnabled(ctx context.Context, enabled bool, at time.Time) (*Settings, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const columns = `id, enabled, first_time_enabled, enabled_at, verified_role_id,
	onboarding_role_ids, verified_bonus_points, onboarding_bonus_points,
	roles_configured, updated_at`

func (r *repository) Get(ctx context.Context) (*Settings, error) {
	return r.get(ctx, `SELECT `+columns+` FROM economy_settings WHERE id = 1`)
}

func (r *repository) GetForUpdate(ctx context.Context) (*Settings, error) {
	return r.get(ctx, `SELECT `+columns+` FROM economy_settings WHERE id = 1 FOR UPDATE`)
}

func (r *repository) get(ctx context.Context, query string) (*Settings, error) {
	var s Settings
	err := r.db.GetContext(ctx, &s, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get settings: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

func (r *repository) Save(ctx context.Context, s *Settings) error {
	query := `
		UPDATE economy_settings
		SET verified_role_id = $1,
		    onboarding_role_ids = $2,
		    verified_bonus_points = $3,
		    onboarding_bonus_points = $4,
		    roles_configured = $5,
		    updated_at = NOW()
		WHERE id = 1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &s.UpdatedAt, query,
		s.VerifiedRoleID,
		s.OnboardingRoleIDs,
		s.VerifiedBonusPoints,
		s.OnboardingBonusPoints,
		s.RolesConfigured,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// SetEnabled flips the toggle. Enabling also sets the first-time latch,
// which nothing ever clears.
func (r *repository) SetEnabled(
	ctx context.Context,
	enabled bool,
	at time.Time,
) (*Settings, error) {
	query := `
		UPDATE economy_settings
		SET enabled = $1,
		    first_time_enabled = first_time_enabled OR $1,
		    enabled_at = CASE WHEN $1 THEN $2::timestamptz ELSE enabled_at END,
		    updated_at = NOW()
		WHERE id = 1
		RETURNING ` + columns

	var s Settings
	if err := r.db.GetContext(ctx, &s, query, enabled, at); err != nil {
		return nil, fmt.Errorf("set enabled: %w", err)
	}
	return &s, nil
}
