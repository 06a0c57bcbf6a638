// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
)

var (
	ErrTokenReuse   = errors.New("token reuse detected")
	ErrInvalidState = errors.New("oauth state unknown or expired")
)

const (
	statePrefix         = "oauth_state:"
	defaultStateTTL     = 10 * time.Minute
	refreshRetainPeriod = 24 * time.Hour
)

type UserProvider interface {
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	UpsertDiscordUser(ctx context.Context, p DiscordProfile) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
}

type Service struct {
	repo     Repository
	jwt      *JWTManager
	users    UserProvider
	identity IdentityProvider
	states   core.Cache
	stateTTL time.Duration
	clock    core.Clock
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	users UserProvider,
	identity IdentityProvider,
	states core.Cache,
	stateTTL time.Duration,
	clock core.Clock,
) *Service {
	if stateTTL <= 0 {
		stateTTL = defaultStateTTL
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Service{
		repo:     repo,
		jwt:      jwt,
		users:    users,
		identity: identity,
		states:   states,
		stateTTL: stateTTL,
		clock:    clock,
	}
}

// LoginURL starts the handshake. The state is single use.
func (s *Service) LoginURL(ctx context.Context) (*LoginURLResponse, error) {
	state, err := core.GenerateOAuthState()
	if err != nil {
		return nil, err
	}

	if err := s.states.Put(ctx, statePrefix+state, "1", s.stateTTL); err != nil {
		return nil, fmt.Errorf("store oauth state: %w", err)
	}

	return &LoginURLResponse{URL: s.identity.AuthCodeURL(state), State: state}, nil
}

func (s *Service) Callback(
	ctx context.Context,
	req CallbackRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	_, ok, err := s.states.Take(ctx, statePrefix+req.State)
	if err != nil {
		return nil, fmt.Errorf("check oauth state: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	profile, err := s.identity.Identify(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("identify: %w", core.ErrUnauthorized)
	}

	user, err := s.users.UpsertDiscordUser(ctx, *profile)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "")
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	now := s.clock.Now()

	if stored.IsUsed {
		return nil, s.reuse(ctx, stored)
	}

	if !stored.IsValid(now) {
		if stored.IsRevoked() {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	nextID := uuid.New().String()
	if err := s.repo.MarkAsUsed(ctx, stored.ID, nextID, now); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, s.reuse(ctx, stored)
		}
		return nil, err
	}

	return s.issue(ctx, user, userAgent, ipAddress, stored.FamilyID, nextID)
}

// reuse revokes the whole family. A used token presented again means the
// chain leaked.
func (s *Service) reuse(ctx context.Context, stored *RefreshToken) error {
	//nolint:errcheck // revocation is best effort, the caller is refused either way
	_ = s.repo.RevokeByFamilyID(ctx, stored.FamilyID, s.clock.Now())
	return ErrTokenReuse
}

func (s *Service) Logout(ctx context.Context, refreshToken, userID string) error {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if stored.UserID != userID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, stored.ID, s.clock.Now()); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

// LogoutAll revokes every refresh token and bumps the token version so
// outstanding access tokens stop verifying.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID, s.clock.Now()); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) GetActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	tokens, err := s.repo.ActiveSessions(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if token.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID, s.clock.Now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

// VerifyAccessToken checks the signature and then the token version, so
// LogoutAll takes effect before the token expires.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if claims.TokenVersion < user.TokenVersion {
		return nil, fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// CleanupExpired drops refresh tokens a day past expiry.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now().Add(-refreshRetainPeriod))
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
) (*AuthResponse, error) {
	return s.issue(ctx, user, userAgent, ipAddress, familyID, uuid.New().String())
}

func (s *Service) issue(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID, tokenID string,
) (*AuthResponse, error) {
	accessToken, expiresAt, err := s.jwt.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.NewRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	if err := s.repo.Create(ctx, &RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	ttl := s.jwt.AccessTokenTTL()
	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(ttl / time.Second),
			ExpiresAt:    expiresAt,
		},
	}, nil
}
