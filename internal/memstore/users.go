// AngelaMos | 2026
// users.go

package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

// Users returns the user repository. The signature matches the
// constructors services take.
func (s *Store) Users(core.DBTX) user.Repository {
	return userRepo{s}
}

func (s *Store) Ledger(core.DBTX) ledger.Repository {
	return ledgerRepo{s}
}

// PutUser stores u as is, for test setup.
func (s *Store) PutUser(u user.User) {
	s.locked(func(st *state) {
		if u.UUID == uuid.Nil {
			u.UUID = uuid.New()
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = s.now()
		}
		st.users[u.ID] = u
	})
}

func (s *Store) User(id string) (user.User, bool) {
	var (
		u  user.User
		ok bool
	)
	s.locked(func(st *state) { u, ok = st.users[id] })
	return u, ok
}

// Entries returns the ledger entries of userID in insertion order.
func (s *Store) Entries(userID string) []ledger.Entry {
	var out []ledger.Entry
	s.locked(func(st *state) {
		for _, e := range st.entries {
			if e.UserID == userID {
				out = append(out, e)
			}
		}
	})
	return out
}

type userRepo struct{ s *Store }

func (r userRepo) Ensure(_ context.Context, p user.Profile) (*user.User, error) {
	var out user.User
	r.s.locked(func(st *state) {
		now := r.s.now()
		u, ok := st.users[p.ID]
		if !ok {
			u = user.User{ID: p.ID, UUID: uuid.New(), CreatedAt: now}
		}
		if p.Username != "" {
			u.Username = p.Username
		}
		if p.AvatarURL != "" {
			u.AvatarURL = p.AvatarURL
		}
		u.UpdatedAt = now
		st.users[p.ID] = u
		out = u
	})
	return &out, nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := r.s.User(id)
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return &u, nil
}

func (r userRepo) Leaderboard(_ context.Context, limit int) ([]user.LeaderboardEntry, error) {
	var list []user.User
	r.s.locked(func(st *state) {
		for _, u := range st.users {
			if !u.IsAdmin {
				list = append(list, u)
			}
		}
	})
	sortUsers(list, func(a, b user.User) int { return cmpDesc(a.Balance, b.Balance) })

	list = paginate(list, limit, 0)
	out := make([]user.LeaderboardEntry, len(list))
	for i, u := range list {
		out[i] = user.LeaderboardEntry{
			Rank:      i + 1,
			UserID:    u.ID,
			Username:  u.Username,
			AvatarURL: u.AvatarURL,
			Balance:   u.Balance,
		}
	}
	return out, nil
}

func (r userRepo) AdminLeaderboard(
	_ context.Context,
	params user.ListUsersParams,
) ([]user.AdminLeaderboardEntry, int, error) {
	params.Normalize()

	var entries []user.AdminLeaderboardEntry
	created := map[string]time.Time{}
	r.s.locked(func(st *state) {
		for _, u := range st.users {
			if !matchesSearch(u, params.Search) {
				continue
			}
			e := user.AdminLeaderboardEntry{
				UserID:        u.ID,
				Username:      u.Username,
				IsAdmin:       u.IsAdmin,
				Balance:       u.Balance,
				PointsEarned:  u.PointsEarned,
				MessageCount:  u.MessageCount,
				ReactionCount: u.ReactionCount,
				VoiceMinutes:  u.VoiceMinutes,
			}
			for _, p := range st.purchases {
				if p.UserID == u.ID && p.Status != "failed" {
					e.TotalSpent += p.PointsSpent
					e.PurchaseCount++
				}
			}
			for k := range st.held {
				if k.userID == u.ID {
					e.AchievementCount++
				}
			}
			entries = append(entries, e)
			created[u.ID] = u.CreatedAt
		}
	})

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		var c int
		switch params.Sort {
		case user.SortEarned:
			c = cmpDesc(a.PointsEarned, b.PointsEarned)
		case user.SortSpent:
			c = cmpDesc(a.TotalSpent, b.TotalSpent)
		case user.SortRecent:
			c = created[b.UserID].Compare(created[a.UserID])
		default:
			c = cmpDesc(a.Balance, b.Balance)
		}
		if c != 0 {
			return c < 0
		}
		return a.UserID < b.UserID
	})

	return paginate(entries, params.PageSize, params.Offset()), len(entries), nil
}

func (r userRepo) List(_ context.Context, params user.ListUsersParams) ([]user.User, int, error) {
	params.Normalize()

	var list []user.User
	r.s.locked(func(st *state) {
		for _, u := range st.users {
			if matchesSearch(u, params.Search) {
				list = append(list, u)
			}
		}
	})

	if params.Sort == user.SortRecent {
		sortUsers(list, func(a, b user.User) int { return b.CreatedAt.Compare(a.CreatedAt) })
	} else {
		sortUsers(list, func(a, b user.User) int { return cmpDesc(a.Balance, b.Balance) })
	}

	return paginate(list, params.PageSize, params.Offset()), len(list), nil
}

func (r userRepo) SetAdmin(_ context.Context, id string, isAdmin bool) error {
	return r.update(id, "set admin", func(u *user.User) { u.IsAdmin = isAdmin })
}

func (r userRepo) IncrementTokenVersion(_ context.Context, id string) error {
	return r.update(id, "increment token version", func(u *user.User) { u.TokenVersion++ })
}

func (r userRepo) update(id, op string, fn func(u *user.User)) error {
	var found bool
	r.s.locked(func(st *state) {
		u, ok := st.users[id]
		if !ok {
			return
		}
		fn(&u)
		u.UpdatedAt = r.s.now()
		st.users[id] = u
		found = true
	})
	if !found {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (r userRepo) ListByBirthday(_ context.Context, month, day int) ([]user.User, error) {
	var out []user.User
	r.s.locked(func(st *state) {
		for _, u := range st.users {
			if u.HasBirthday() && *u.BirthdayMonth == month && *u.BirthdayDay == day {
				out = append(out, u)
			}
		}
	})
	sortUsers(out, func(user.User, user.User) int { return 0 })
	return out, nil
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) LockUser(_ context.Context, userID string) (*user.User, error) {
	var out user.User
	r.s.locked(func(st *state) {
		u, ok := st.users[userID]
		if !ok {
			now := r.s.now()
			u = user.User{ID: userID, UUID: uuid.New(), CreatedAt: now, UpdatedAt: now}
			st.users[userID] = u
		}
		out = u
	})
	return &out, nil
}

func (r ledgerRepo) GetUser(_ context.Context, userID string) (*user.User, error) {
	var (
		out user.User
		ok  bool
	)
	r.s.locked(func(st *state) {
		out, ok = st.users[userID]
	})
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", userID, core.ErrNotFound)
	}
	return &out, nil
}

func (r ledgerRepo) SaveUser(_ context.Context, u *user.User) error {
	var found bool
	r.s.locked(func(st *state) {
		stored, ok := st.users[u.ID]
		if !ok {
			return
		}
		found = true

		stored.Balance = u.Balance
		stored.PointsEarned = u.PointsEarned
		stored.MessageCount = u.MessageCount
		stored.ReactionCount = u.ReactionCount
		stored.VoiceMinutes = u.VoiceMinutes
		stored.VerifiedBonusReceived = u.VerifiedBonusReceived
		stored.OnboardingBonusReceived = u.OnboardingBonusReceived
		stored.EnrollmentDepositReceived = u.EnrollmentDepositReceived
		stored.BirthdayPointsReceived = u.BirthdayPointsReceived
		stored.LastDaily = u.LastDaily
		stored.LastDailyEngagement = u.LastDailyEngagement
		stored.DailyClaimsCount = u.DailyClaimsCount
		stored.CampusPhotosCount = u.CampusPhotosCount
		stored.DailyEngagementCount = u.DailyEngagementCount
		stored.BirthdayMonth = u.BirthdayMonth
		stored.BirthdayDay = u.BirthdayDay
		stored.UpdatedAt = r.s.now()

		st.users[u.ID] = stored
		u.UpdatedAt = stored.UpdatedAt
	})
	if !found {
		return fmt.Errorf("save user: %w", core.ErrNotFound)
	}
	return nil
}

func (r ledgerRepo) InsertEntry(_ context.Context, e *ledger.Entry) error {
	var dup bool
	r.s.locked(func(st *state) {
		if e.GrantKey != nil {
			for _, existing := range st.entries {
				if existing.UserID == e.UserID && existing.GrantKey != nil && *existing.GrantKey == *e.GrantKey {
					dup = true
					return
				}
			}
		}
		e.ID = r.s.nextID()
		e.CreatedAt = r.s.now()
		st.entries = append(st.entries, *e)
	})
	if dup {
		return fmt.Errorf("insert ledger entry: %w", core.ErrDuplicateKey)
	}
	return nil
}

func (r ledgerRepo) HasGrant(_ context.Context, userID, grantKey string) (bool, error) {
	var found bool
	r.s.locked(func(st *state) {
		for _, e := range st.entries {
			if e.UserID == userID && e.GrantKey != nil && *e.GrantKey == grantKey {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r ledgerRepo) UserIDsAfter(_ context.Context, afterID string, limit int) ([]string, error) {
	var ids []string
	r.s.locked(func(st *state) {
		for id := range st.users {
			if id > afterID {
				ids = append(ids, id)
			}
		}
	})
	sort.Strings(ids)
	return paginate(ids, limit, 0), nil
}

func (r ledgerRepo) History(_ context.Context, userID string, limit int) ([]ledger.Entry, error) {
	entries := r.s.Entries(userID)
	out := make([]ledger.Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return paginate(out, limit, 0), nil
}

func (r ledgerRepo) Totals(context.Context) (*ledger.Totals, error) {
	t := &ledger.Totals{}
	r.s.locked(func(st *state) {
		cutoff := r.s.now().Add(-7 * 24 * time.Hour)
		earners := map[string]bool{}

		t.Users = len(st.users)
		for _, u := range st.users {
			t.Circulating += u.Balance
			t.EverEarned += u.PointsEarned
		}
		t.Entries = int64(len(st.entries))
		for _, e := range st.entries {
			if e.Amount > 0 && e.CreatedAt.After(cutoff) {
				earners[e.UserID] = true
			}
		}
		t.ActiveEarners7d = len(earners)
	})
	return t, nil
}

func matchesSearch(u user.User, search string) bool {
	if search == "" {
		return true
	}
	return u.ID == search || strings.Contains(strings.ToLower(u.Username), strings.ToLower(search))
}

// sortUsers orders by cmp, then by id ascending.
func sortUsers(list []user.User, cmp func(a, b user.User) int) {
	sort.Slice(list, func(i, j int) bool {
		if c := cmp(list[i], list[j]); c != 0 {
			return c < 0
		}
		return list[i].ID < list[j].ID
	})
}

func cmpDesc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
