// AngelaMos | 2026
// store.go

// Package memstore is an in-memory implementation of every repository in
// the module. Transactions run one at a time and roll back to a snapshot
// on error, which stands in for row locks in tests.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/auth"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

// handle satisfies core.DBTX. The SQL methods are never called by the
// memstore repositories.
type handle struct {
	core.DBTX
}

type heldKey struct {
	userID        string
	achievementID int64
}

type state struct {
	users        map[string]user.User
	entries      []ledger.Entry
	settings     settings.Settings
	products     map[int64]product.Product
	purchases    map[int64]purchase.Purchase
	achievements map[int64]achievement.Achievement
	held         map[heldKey]time.Time
	roles        map[int64]fulfillment.RoleAssignment
	tokens       map[string]fulfillment.DownloadToken
	sessions     map[string]auth.RefreshToken
	seq          int64
}

func (s state) clone() state {
	c := s
	c.users = maps.Clone(s.users)
	c.entries = slices.Clone(s.entries)
	c.products = maps.Clone(s.products)
	c.purchases = maps.Clone(s.purchases)
	c.achievements = maps.Clone(s.achievements)
	c.held = maps.Clone(s.held)
	c.roles = maps.Clone(s.roles)
	c.tokens = maps.Clone(s.tokens)
	c.sessions = maps.Clone(s.sessions)
	c.settings.OnboardingRoleIDs = slices.Clone(s.settings.OnboardingRoleIDs)
	return c
}

type Store struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	clock core.Clock
	db    handle
	st    state
}

// New returns an empty store with the default settings row and no
// achievements. Use SeedAchievements for the stock set.
func New(clock core.Clock) *Store {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Store{
		clock: clock,
		st: state{
			users:        map[string]user.User{},
			settings:     settings.Settings{ID: 1, VerifiedBonusPoints: 200, OnboardingBonusPoints: 500, OnboardingRoleIDs: settings.RoleIDs{}},
			products:     map[int64]product.Product{},
			purchases:    map[int64]purchase.Purchase{},
			achievements: map[int64]achievement.Achievement{},
			held:         map[heldKey]time.Time{},
			roles:        map[int64]fulfillment.RoleAssignment{},
			tokens:       map[string]fulfillment.DownloadToken{},
			sessions:     map[string]auth.RefreshToken{},
		},
	}
}

// DB is the handle services use outside transactions.
func (s *Store) DB() core.DBTX {
	return s.db
}

func (s *Store) WithTx(ctx context.Context, fn func(tx core.DBTX) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(s.db); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) nextID() int64 {
	s.st.seq++
	return s.st.seq
}

func (s *Store) now() time.Time {
	return s.clock.Now()
}

// locked runs fn under the data lock.
func (s *Store) locked(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
