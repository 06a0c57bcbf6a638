// AngelaMos | 2026
// achievements.go

package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

func (s *Store) Achievements(core.DBTX) achievement.Repository {
	return achievementRepo{s}
}

// SeedAchievements installs the stock achievement set.
func (s *Store) SeedAchievements() {
	seed := []achievement.Achievement{
		{Name: "First Steps", Description: "Send your first message", Points: 10, Type: achievement.TypeMessage, Requirement: 1},
		{Name: "Chatterbox", Description: "Send 100 messages", Points: 50, Type: achievement.TypeMessage, Requirement: 100},
		{Name: "Social Butterfly", Description: "Send 500 messages", Points: 150, Type: achievement.TypeMessage, Requirement: 500},
		{Name: "Conversationalist", Description: "Send 1000 messages", Points: 100, Type: achievement.TypeMessage, Requirement: 1000},
		{Name: "Legend", Description: "Send 5000 messages", Points: 500, Type: achievement.TypeMessage, Requirement: 5000},
		{Name: "First Reaction", Description: "React to a message", Points: 5, Type: achievement.TypeReaction, Requirement: 1},
		{Name: "Reactor", Description: "React 50 times", Points: 25, Type: achievement.TypeReaction, Requirement: 50},
		{Name: "Super Reactor", Description: "React 250 times", Points: 75, Type: achievement.TypeReaction, Requirement: 250},
		{Name: "Reaction Master", Description: "React 1000 times", Points: 200, Type: achievement.TypeReaction, Requirement: 1000},
		{Name: "Voice Newbie", Description: "Join voice 30 times", Points: 25, Type: achievement.TypeVoice, Requirement: 30},
		{Name: "Voice Regular", Description: "Join voice 120 times", Points: 50, Type: achievement.TypeVoice, Requirement: 120},
		{Name: "Voice Enthusiast", Description: "Join voice 600 times", Points: 150, Type: achievement.TypeVoice, Requirement: 600},
		{Name: "Voice Addict", Description: "Join voice 1440 times", Points: 300, Type: achievement.TypeVoice, Requirement: 1440},
		{Name: "Welcome Aboard", Description: "Receive your first bonus", Points: 25, Type: achievement.TypeSpecial, Requirement: 1},
	}
	for i := range seed {
		_ = achievementRepo{s}.Create(context.Background(), &seed[i]) //nolint:errcheck // names are unique
	}
}

// HeldCount reports how many achievements userID holds.
func (s *Store) HeldCount(userID string) int {
	n := 0
	s.locked(func(st *state) {
		for k := range st.held {
			if k.userID == userID {
				n++
			}
		}
	})
	return n
}

type achievementRepo struct{ s *Store }

func (r achievementRepo) List(context.Context) ([]achievement.Achievement, error) {
	var out []achievement.Achievement
	r.s.locked(func(st *state) {
		for _, a := range st.achievements {
			out = append(out, a)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Requirement != b.Requirement {
			return a.Requirement < b.Requirement
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r achievementRepo) Create(_ context.Context, a *achievement.Achievement) error {
	var dup bool
	r.s.locked(func(st *state) {
		for _, existing := range st.achievements {
			if existing.Name == a.Name {
				dup = true
				return
			}
		}
		a.ID = r.s.nextID()
		a.CreatedAt = r.s.now()
		st.achievements[a.ID] = *a
	})
	if dup {
		return fmt.Errorf("create achievement: %w", core.ErrDuplicateKey)
	}
	return nil
}

func (r achievementRepo) ListForUser(_ context.Context, userID string) ([]achievement.Held, error) {
	var out []achievement.Held
	r.s.locked(func(st *state) {
		for k, at := range st.held {
			if k.userID == userID {
				out = append(out, achievement.Held{Achievement: st.achievements[k.achievementID], AwardedAt: at})
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].AwardedAt.After(out[j].AwardedAt)
		}
		return out[i].Achievement.ID < out[j].Achievement.ID
	})
	return out, nil
}

func (r achievementRepo) Eligible(
	_ context.Context,
	userID string,
	t achievement.Type,
	count int,
) ([]achievement.Achievement, error) {
	var out []achievement.Achievement
	r.s.locked(func(st *state) {
		for _, a := range st.achievements {
			if a.Type != t || a.Requirement > count {
				continue
			}
			if _, held := st.held[heldKey{userID, a.ID}]; held {
				continue
			}
			out = append(out, a)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requirement != out[j].Requirement {
			return out[i].Requirement < out[j].Requirement
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r achievementRepo) Award(_ context.Context, userID string, achievementID int64) (bool, error) {
	inserted := false
	r.s.locked(func(st *state) {
		k := heldKey{userID, achievementID}
		if _, held := st.held[k]; held {
			return
		}
		st.held[k] = r.s.now()
		inserted = true
	})
	return inserted, nil
}

func (r achievementRepo) Progress(_ context.Context, userID string) (int, int, int64, error) {
	var (
		held, total int
		unearned    int64
	)
	r.s.locked(func(st *state) {
		for _, a := range st.achievements {
			total++
			if _, ok := st.held[heldKey{userID, a.ID}]; ok {
				held++
			} else {
				unearned += a.Points
			}
		}
	})
	return held, total, unearned, nil
}
