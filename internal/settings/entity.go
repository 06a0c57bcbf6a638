// AngelaMos | 2026
// entity.go

package settings

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Settings is the singleton economy configuration row.
type Settings struct {
	ID                    int        `db:"id"`
	Enabled               bool       `db:"enabled"`
	FirstTimeEnabled      bool       `db:"first_time_enabled"`
	EnabledAt             *time.Time `db:"enabled_at"`
	VerifiedRoleID        string     `db:"verified_role_id"`
	OnboardingRoleIDs     RoleIDs    `db:"onboarding_role_ids"`
	VerifiedBonusPoints   int64      `db:"verified_bonus_points"`
	OnboardingBonusPoints int64      `db:"onboarding_bonus_points"`
	RolesConfigured       bool       `db:"roles_configured"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func (s *Settings) IsOnboardingRole(roleID string) bool {
	return slices.Contains(s.OnboardingRoleIDs, roleID)
}

// RoleIDs is stored as a JSON array.
type RoleIDs []string

func (r RoleIDs) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *RoleIDs) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = RoleIDs{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan role ids: unsupported type %T", src)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("scan role ids: %w", err)
	}
	*r = ids
	return nil
}
