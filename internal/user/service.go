// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/pitchfork-economy/internal/auth"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

const (
	LeaderboardSize     = 10
	leaderboardCacheKey = "leaderboard:top:%d"
)

// AdminSource answers whether a member currently holds admin permission on
// the chat platform.
type AdminSource interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type Service struct {
	repo           Repository
	cache          core.Cache
	leaderboardTTL time.Duration
	admins         AdminSource
}

// NewService builds the user service. cache may be nil, in which case the
// leaderboard is always read from the database.
func NewService(repo Repository, cache core.Cache, leaderboardTTL time.Duration) *Service {
	return &Service{
		repo:           repo,
		cache:          cache,
		leaderboardTTL: leaderboardTTL,
	}
}

// SetAdminSource enables live admin checks against the chat platform.
func (s *Service) SetAdminSource(a AdminSource) {
	s.admins = a
}

func (s *Service) Ensure(ctx context.Context, p Profile) (*User, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("ensure user: empty id: %w", core.ErrInvalidInput)
	}
	return s.repo.Ensure(ctx, p)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}
	return s.repo.GetByID(ctx, userID)
}

// Leaderboard returns the top non-admin balances, highest first, ties
// broken by ascending user id.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		limit = LeaderboardSize
	}

	key := fmt.Sprintf(leaderboardCacheKey, limit)
	if s.cache != nil {
		var cached []LeaderboardEntry
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			slog.Warn("leaderboard cache read failed", "error", err)
		}
		if hit {
			return cached, nil
		}
	}

	entries, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}

	if s.cache != nil && s.leaderboardTTL > 0 {
		if err := s.cache.SetJSON(ctx, key, entries, s.leaderboardTTL); err != nil {
			slog.Warn("leaderboard cache write failed", "error", err)
		}
	}

	return entries, nil
}

func (s *Service) AdminLeaderboard(
	ctx context.Context,
	params ListUsersParams,
) ([]AdminLeaderboardEntry, int, error) {
	return s.repo.AdminLeaderboard(ctx, params)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) BirthdaysOn(ctx context.Context, month, day int) ([]User, error) {
	return s.repo.ListByBirthday(ctx, month, day)
}

// VerifyAdmin re-checks admin status for one action. With a live source
// the stored flag is brought in line with the platform; if the platform
// cannot be reached the stored flag decides.
func (s *Service) VerifyAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	if s.admins == nil {
		return u.IsAdmin, nil
	}

	live, err := s.admins.IsAdmin(ctx, userID)
	if err != nil {
		slog.Warn("live admin check failed, using stored flag",
			"user_id", userID,
			"error", err,
		)
		return u.IsAdmin, nil
	}

	if live != u.IsAdmin {
		if err := s.repo.SetAdmin(ctx, userID, live); err != nil {
			return false, err
		}
		s.invalidateLeaderboard(ctx)
	}

	return live, nil
}

func (s *Service) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, fmt.Sprintf(leaderboardCacheKey, LeaderboardSize)); err != nil {
		slog.Warn("leaderboard cache invalidate failed", "error", err)
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserInfo(u), nil
}

// UpsertDiscordUser records a web login and refreshes the admin flag.
func (s *Service) UpsertDiscordUser(
	ctx context.Context,
	p auth.DiscordProfile,
) (*auth.UserInfo, error) {
	u, err := s.Ensure(ctx, Profile{
		ID:        p.ID,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
	})
	if err != nil {
		return nil, err
	}

	isAdmin, err := s.VerifyAdmin(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.IsAdmin = isAdmin

	return toUserInfo(u), nil
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Username:     u.DisplayName(),
		AvatarURL:    u.AvatarURL,
		IsAdmin:      u.IsAdmin,
		TokenVersion: u.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)
