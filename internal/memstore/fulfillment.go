// AngelaMos | 2026
// fulfillment.go

package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
)

func (s *Store) Fulfillment(core.DBTX) fulfillment.Repository {
	return fulfillmentRepo{s}
}

func (s *Store) RoleAssignments(purchaseID int64) []fulfillment.RoleAssignment {
	var out []fulfillment.RoleAssignment
	s.locked(func(st *state) {
		for _, a := range st.roles {
			if a.PurchaseID == purchaseID {
				out = append(out, a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) DownloadTokens(purchaseID int64) []fulfillment.DownloadToken {
	var out []fulfillment.DownloadToken
	s.locked(func(st *state) {
		for _, t := range st.tokens {
			if t.PurchaseID == purchaseID {
				out = append(out, t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fulfillmentRepo struct{ s *Store }

func live(a fulfillment.RoleAssignment) bool {
	return a.Status == fulfillment.RolePending || a.Status == fulfillment.RoleCompleted
}

func (r fulfillmentRepo) InsertRoleAssignment(_ context.Context, a *fulfillment.RoleAssignment) error {
	var dup bool
	r.s.locked(func(st *state) {
		for _, existing := range st.roles {
			if existing.PurchaseID == a.PurchaseID && live(existing) {
				dup = true
				return
			}
		}
		now := r.s.now()
		a.ID = r.s.nextID()
		a.Status = fulfillment.RolePending
		a.Attempts = 0
		a.NextAttemptAt = now
		a.CreatedAt = now
		st.roles[a.ID] = *a
	})
	if dup {
		return fmt.Errorf("insert role assignment: %w", core.ErrDuplicateKey)
	}
	return nil
}

func (r fulfillmentRepo) GetRoleAssignment(_ context.Context, id int64) (*fulfillment.RoleAssignment, error) {
	var (
		a  fulfillment.RoleAssignment
		ok bool
	)
	r.s.locked(func(st *state) { a, ok = st.roles[id] })
	if !ok {
		return nil, fmt.Errorf("role assignment %d: %w", id, core.ErrNotFound)
	}
	return &a, nil
}

func (r fulfillmentRepo) ClaimRoleAssignments(
	_ context.Context,
	now time.Time,
	lease time.Duration,
	limit int,
) ([]fulfillment.RoleAssignment, error) {
	var due []fulfillment.RoleAssignment
	r.s.locked(func(st *state) {
		for _, a := range st.roles {
			if a.Status != fulfillment.RolePending || a.NextAttemptAt.After(now) {
				continue
			}
			if a.LockedUntil != nil && !a.LockedUntil.Before(now) {
				continue
			}
			due = append(due, a)
		}
		sort.Slice(due, func(i, j int) bool {
			if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
				return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
			}
			return due[i].ID < due[j].ID
		})
		due = paginate(due, limit, 0)

		until := now.Add(lease)
		for i := range due {
			due[i].LockedUntil = &until
			due[i].Attempts++
			st.roles[due[i].ID] = due[i]
		}
	})
	return due, nil
}

func (r fulfillmentRepo) CompleteRoleAssignment(_ context.Context, id int64, now time.Time) (bool, error) {
	return r.finishRole(id, func(a *fulfillment.RoleAssignment) {
		a.Status = fulfillment.RoleCompleted
		a.CompletedAt = &now
		a.Error = ""
	}), nil
}

func (r fulfillmentRepo) FailRoleAssignment(_ context.Context, id int64, reason string) (bool, error) {
	return r.finishRole(id, func(a *fulfillment.RoleAssignment) {
		a.Status = fulfillment.RoleFailed
		a.Error = reason
	}), nil
}

func (r fulfillmentRepo) finishRole(id int64, fn func(a *fulfillment.RoleAssignment)) bool {
	moved := false
	r.s.locked(func(st *state) {
		a, ok := st.roles[id]
		if !ok || a.Status != fulfillment.RolePending {
			return
		}
		fn(&a)
		a.LockedUntil = nil
		st.roles[id] = a
		moved = true
	})
	return moved
}

func (r fulfillmentRepo) RescheduleRoleAssignment(_ context.Context, id int64, next time.Time, reason string) error {
	r.s.locked(func(st *state) {
		a, ok := st.roles[id]
		if !ok || a.Status != fulfillment.RolePending {
			return
		}
		a.NextAttemptAt = next
		a.LockedUntil = nil
		a.Error = reason
		st.roles[id] = a
	})
	return nil
}

func (r fulfillmentRepo) ListRoleAssignments(
	_ context.Context,
	status fulfillment.RoleStatus,
	limit, offset int,
) ([]fulfillment.RoleAssignment, int, error) {
	var out []fulfillment.RoleAssignment
	r.s.locked(func(st *state) {
		for _, a := range st.roles {
			if status == "" || a.Status == status {
				out = append(out, a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, limit, offset), len(out), nil
}

func (r fulfillmentRepo) FinishPurchase(_ context.Context, purchaseID int64, status, info string) (bool, error) {
	return r.s.finishPurchase(purchaseID, status, info), nil
}

func (r fulfillmentRepo) InsertDownloadToken(_ context.Context, t *fulfillment.DownloadToken) error {
	var dup bool
	r.s.locked(func(st *state) {
		if _, dup = st.tokens[t.Token]; dup {
			return
		}
		t.ID = r.s.nextID()
		st.tokens[t.Token] = *t
	})
	if dup {
		return fmt.Errorf("insert download token: %w", core.ErrDuplicateKey)
	}
	return nil
}

func (r fulfillmentRepo) GetDownloadToken(_ context.Context, token string) (*fulfillment.DownloadToken, error) {
	var (
		t  fulfillment.DownloadToken
		ok bool
	)
	r.s.locked(func(st *state) { t, ok = st.tokens[token] })
	if !ok {
		return nil, fulfillment.ErrTokenUnknown
	}
	return &t, nil
}

func (r fulfillmentRepo) RedeemDownloadToken(
	_ context.Context,
	token, userID string,
	now time.Time,
	maxUses int,
) (*fulfillment.DownloadToken, error) {
	var (
		out fulfillment.DownloadToken
		ok  bool
	)
	r.s.locked(func(st *state) {
		t, exists := st.tokens[token]
		if !exists || t.UserID != userID || now.After(t.ExpiresAt) || t.DownloadCount >= maxUses {
			return
		}
		t.DownloadCount++
		t.Downloaded = true
		at := now
		t.LastDownloadedAt = &at
		st.tokens[token] = t
		out, ok = t, true
	})
	if !ok {
		return nil, core.ErrNotFound
	}
	return &out, nil
}

func (r fulfillmentRepo) ActiveTokens(_ context.Context, userID string, now time.Time) ([]fulfillment.DownloadToken, error) {
	var out []fulfillment.DownloadToken
	r.s.locked(func(st *state) {
		for _, t := range st.tokens {
			if t.UserID == userID && !t.ExpiresAt.Before(now) {
				out = append(out, t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fulfillmentRepo) DeleteExpiredTokens(_ context.Context, before time.Time) (int64, error) {
	var n int64
	r.s.locked(func(st *state) {
		for k, t := range st.tokens {
			if t.ExpiresAt.Before(before) {
				delete(st.tokens, k)
				n++
			}
		}
	})
	return n, nil
}

func (r fulfillmentRepo) PurchasesMissingTokens(_ context.Context, limit int) ([]fulfillment.MissingToken, error) {
	var out []fulfillment.MissingToken
	r.s.locked(func(st *state) {
		issued := map[int64]bool{}
		for _, t := range st.tokens {
			issued[t.PurchaseID] = true
		}
		for _, p := range st.purchases {
			pr := st.products[p.ProductID]
			if pr.Fulfillment() != product.DeliveryDownload || p.Status != fulfillment.PurchaseCompleted || issued[p.ID] {
				continue
			}
			out = append(out, fulfillment.MissingToken{
				PurchaseID: p.ID,
				UserID:     p.UserID,
				FilePath:   pr.FilePath(),
				FileName:   pr.FileName(),
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PurchaseID < out[j].PurchaseID })
	return paginate(out, limit, 0), nil
}
