// AngelaMos | 2026
// dto.go

package settings

import (
	"time"
)

type UpdateConfigRequest struct {
	VerifiedRoleID        *string  `json:"verified_role_id,omitempty"        validate:"omitempty,max=32,numeric"`
	OnboardingRoleIDs     []string `json:"onboarding_role_ids,omitempty"     validate:"omitempty,max=25,dive,required,max=32,numeric"`
	VerifiedBonusPoints   *int64   `json:"verified_bonus_points,omitempty"   validate:"omitempty,gt=0,max=1000000"`
	OnboardingBonusPoints *int64   `json:"onboarding_bonus_points,omitempty" validate:"omitempty,gt=0,max=1000000"`
}

type SettingsResponse struct {
	Enabled               bool       `json:"enabled"`
	FirstTimeEnabled      bool       `json:"first_time_enabled"`
	EnabledAt             *time.Time `json:"enabled_at,omitempty"`
	VerifiedRoleID        string     `json:"verified_role_id"`
	OnboardingRoleIDs     []string   `json:"onboarding_role_ids"`
	VerifiedBonusPoints   int64      `json:"verified_bonus_points"`
	OnboardingBonusPoints int64      `json:"onboarding_bonus_points"`
	RolesConfigured       bool       `json:"roles_configured"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type ToggleResponse struct {
	Settings         SettingsResponse `json:"settings"`
	Changed          bool             `json:"changed"`
	FirstTime        bool             `json:"first_time"`
	BootstrapStarted bool             `json:"bootstrap_started"`
}

func ToSettingsResponse(s *Settings) SettingsResponse {
	ids := []string(s.OnboardingRoleIDs)
	if ids == nil {
		ids = []string{}
	}
	return SettingsResponse{
		Enabled:               s.Enabled,
		FirstTimeEnabled:      s.FirstTimeEnabled,
		EnabledAt:             s.EnabledAt,
		VerifiedRoleID:        s.VerifiedRoleID,
		OnboardingRoleIDs:     ids,
		VerifiedBonusPoints:   s.VerifiedBonusPoints,
		OnboardingBonusPoints: s.OnboardingBonusPoints,
		RolesConfigured:       s.RolesConfigured,
		UpdatedAt:             s.UpdatedAt,
	}
}
