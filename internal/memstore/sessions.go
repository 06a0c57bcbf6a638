// AngelaMos | 2026
// sessions.go

package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/auth"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

func (s *Store) RefreshTokens(core.DBTX) auth.Repository {
	return &sessionRepo{s: s}
}

type sessionRepo struct {
	s *Store
}

func (r *sessionRepo) Create(_ context.Context, token *auth.RefreshToken) error {
	var err error
	r.s.locked(func(st *state) {
		for _, t := range st.sessions {
			if t.TokenHash == token.TokenHash {
				err = core.ErrDuplicateKey
				return
			}
		}
		token.CreatedAt = r.s.now()
		st.sessions[token.ID] = *token
	})
	return err
}

func (r *sessionRepo) FindByHash(_ context.Context, tokenHash string) (*auth.RefreshToken, error) {
	var found *auth.RefreshToken
	r.s.locked(func(st *state) {
		for _, t := range st.sessions {
			if t.TokenHash == tokenHash {
				found = &t
				return
			}
		}
	})
	if found == nil {
		return nil, core.ErrNotFound
	}
	return found, nil
}

func (r *sessionRepo) FindByID(_ context.Context, id string) (*auth.RefreshToken, error) {
	var (
		t  auth.RefreshToken
		ok bool
	)
	r.s.locked(func(st *state) {
		t, ok = st.sessions[id]
	})
	if !ok {
		return nil, core.ErrNotFound
	}
	return &t, nil
}

func (r *sessionRepo) MarkAsUsed(_ context.Context, id, replacedByID string, at time.Time) error {
	return r.update(id, func(t *auth.RefreshToken) bool {
		if t.IsUsed {
			return false
		}
		t.IsUsed = true
		t.UsedAt = &at
		t.ReplacedByID = &replacedByID
		return true
	})
}

func (r *sessionRepo) RevokeByID(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(t *auth.RefreshToken) bool {
		if t.RevokedAt != nil {
			return false
		}
		t.RevokedAt = &at
		return true
	})
}

func (r *sessionRepo) update(id string, fn func(t *auth.RefreshToken) bool) error {
	var moved bool
	r.s.locked(func(st *state) {
		t, ok := st.sessions[id]
		if !ok {
			return
		}
		if moved = fn(&t); moved {
			st.sessions[id] = t
		}
	})
	if !moved {
		return core.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) revokeWhere(at time.Time, match func(auth.RefreshToken) bool) {
	r.s.locked(func(st *state) {
		for id, t := range st.sessions {
			if t.RevokedAt == nil && match(t) {
				t.RevokedAt = &at
				st.sessions[id] = t
			}
		}
	})
}

func (r *sessionRepo) RevokeByFamilyID(_ context.Context, familyID string, at time.Time) error {
	r.revokeWhere(at, func(t auth.RefreshToken) bool { return t.FamilyID == familyID })
	return nil
}

func (r *sessionRepo) RevokeAllForUser(_ context.Context, userID string, at time.Time) error {
	r.revokeWhere(at, func(t auth.RefreshToken) bool { return t.UserID == userID })
	return nil
}

func (r *sessionRepo) ActiveSessions(_ context.Context, userID string, now time.Time) ([]auth.RefreshToken, error) {
	var out []auth.RefreshToken
	r.s.locked(func(st *state) {
		for _, t := range st.sessions {
			if t.UserID == userID && t.IsValid(now) {
				out = append(out, t)
			}
		}
	})
	slices.SortFunc(out, func(a, b auth.RefreshToken) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (r *sessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	r.s.locked(func(st *state) {
		for id, t := range st.sessions {
			if t.ExpiresAt.Before(before) {
				delete(st.sessions, id)
				n++
			}
		}
	})
	return n, nil
}
