// AngelaMos | 2026
// settings.go

package memstore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
)

var errLatch = errors.New("first_time_enabled cannot be cleared")

func (s *Store) Settings(core.DBTX) settings.Repository {
	return settingsRepo{s}
}

// SetEconomy writes the settings row directly, for test setup.
func (s *Store) SetEconomy(fn func(st *settings.Settings)) {
	s.locked(func(st *state) { fn(&st.settings) })
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) Get(context.Context) (*settings.Settings, error) {
	var out settings.Settings
	r.s.locked(func(st *state) {
		out = st.settings
		out.OnboardingRoleIDs = slices.Clone(st.settings.OnboardingRoleIDs)
	})
	return &out, nil
}

func (r settingsRepo) GetForUpdate(ctx context.Context) (*settings.Settings, error) {
	return r.Get(ctx)
}

func (r settingsRepo) Save(_ context.Context, in *settings.Settings) error {
	r.s.locked(func(st *state) {
		st.settings.VerifiedRoleID = in.VerifiedRoleID
		st.settings.OnboardingRoleIDs = slices.Clone(in.OnboardingRoleIDs)
		st.settings.VerifiedBonusPoints = in.VerifiedBonusPoints
		st.settings.OnboardingBonusPoints = in.OnboardingBonusPoints
		st.settings.RolesConfigured = in.RolesConfigured
		st.settings.UpdatedAt = r.s.now()
		in.UpdatedAt = st.settings.UpdatedAt
	})
	return nil
}

func (r settingsRepo) SetEnabled(_ context.Context, enabled bool, at time.Time) (*settings.Settings, error) {
	var (
		out settings.Settings
		err error
	)
	r.s.locked(func(st *state) {
		next := st.settings
		next.Enabled = enabled
		next.FirstTimeEnabled = st.settings.FirstTimeEnabled || enabled
		if enabled {
			enabledAt := at
			next.EnabledAt = &enabledAt
		}
		if st.settings.FirstTimeEnabled && !next.FirstTimeEnabled {
			err = errLatch
			return
		}
		next.UpdatedAt = r.s.now()
		st.settings = next
		out = next
		out.OnboardingRoleIDs = slices.Clone(next.OnboardingRoleIDs)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
