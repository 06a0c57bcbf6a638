// AngelaMos | 2026
// service_test.go

package auth_test

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/auth"
	"github.com/carterperez-dev/pitchfork-economy/internal/chat/chattest"
	"github.com/carterperez-dev/pitchfork-economy/internal/config"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

type fakeIdentity map[string]auth.DiscordProfile

func (f fakeIdentity) AuthCodeURL(state string) string {
	return "https://login.example/authorize?state=" + url.QueryEscape(state)
}

func (f fakeIdentity) Identify(_ context.Context, code string) (*auth.DiscordProfile, error) {
	p, ok := f[code]
	if !ok {
		return nil, errors.New("bad code")
	}
	return &p, nil
}

type fixture struct {
	store   *memstore.Store
	cache   *memstore.Cache
	adapter *chattest.Adapter
	jwt     *auth.JWTManager
	svc     *auth.Service
}

func newJWT(t *testing.T) *auth.JWTManager {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	created, err := auth.EnsureKeyPair(priv, pub)
	require.NoError(t, err)
	require.True(t, created)

	m, err := auth.NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
		Issuer:             "pitchfork-test",
		Audience:           "pitchfork-web",
	}, core.SystemClock{})
	require.NoError(t, err)
	return m
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New(core.SystemClock{})
	cache := memstore.NewCache(core.SystemClock{})
	adapter := chattest.New()
	adapter.SetAdmin("boss", true)

	users := user.NewService(store.Users(nil), cache, time.Minute)
	users.SetAdminSource(adapter)

	jwt := newJWT(t)
	identity := fakeIdentity{
		"code-ann":  {ID: "ann", Username: "ann"},
		"code-boss": {ID: "boss", Username: "boss"},
	}

	svc := auth.NewService(store.RefreshTokens(nil), jwt, users, identity, cache, time.Minute, core.SystemClock{})
	return &fixture{store: store, cache: cache, adapter: adapter, jwt: jwt, svc: svc}
}

func (f *fixture) login(t *testing.T, code string) *auth.AuthResponse {
	t.Helper()
	ctx := context.Background()

	start, err := f.svc.LoginURL(ctx)
	require.NoError(t, err)
	require.Contains(t, start.URL, url.QueryEscape(start.State))

	resp, err := f.svc.Callback(ctx, auth.CallbackRequest{Code: code, State: start.State}, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	return resp
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.login(t, "code-ann")
	require.Equal(t, "ann", resp.User.ID)
	require.False(t, resp.User.IsAdmin)
	require.Equal(t, "Bearer", resp.Tokens.TokenType)
	require.Equal(t, 900, resp.Tokens.ExpiresIn)

	claims, err := f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "ann", claims.UserID)

	boss := f.login(t, "code-boss")
	require.True(t, boss.User.IsAdmin)

	_, err = f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken+"x")
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestStateIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, err := f.svc.LoginURL(ctx)
	require.NoError(t, err)

	_, err = f.svc.Callback(ctx, auth.CallbackRequest{Code: "code-ann", State: start.State}, "", "")
	require.NoError(t, err)

	_, err = f.svc.Callback(ctx, auth.CallbackRequest{Code: "code-ann", State: start.State}, "", "")
	require.ErrorIs(t, err, auth.ErrInvalidState)

	_, err = f.svc.Callback(ctx, auth.CallbackRequest{Code: "code-ann", State: "forged"}, "", "")
	require.ErrorIs(t, err, auth.ErrInvalidState)

	start, err = f.svc.LoginURL(ctx)
	require.NoError(t, err)
	_, err = f.svc.Callback(ctx, auth.CallbackRequest{Code: "wrong", State: start.State}, "", "")
	require.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.login(t, "code-ann")

	second, err := f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	require.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, auth.ErrTokenReuse)

	_, err = f.svc.Refresh(ctx, second.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, "never-issued", "", "")
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestLogoutAllInvalidatesAccessTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.login(t, "code-ann")
	f.login(t, "code-ann")

	sessions, err := f.svc.GetActiveSessions(ctx, "ann")
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.NoError(t, f.svc.LogoutAll(ctx, "ann"))

	_, err = f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	sessions, err = f.svc.GetActiveSessions(ctx, "ann")
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestRevokeSessionChecksOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.login(t, "code-ann")
	f.login(t, "code-boss")

	sessions, err := f.svc.GetActiveSessions(ctx, "ann")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	err = f.svc.RevokeSession(ctx, "boss", sessions[0].ID)
	require.ErrorIs(t, err, core.ErrForbidden)

	require.NoError(t, f.svc.RevokeSession(ctx, "ann", sessions[0].ID))

	sessions, err = f.svc.GetActiveSessions(ctx, "ann")
	require.NoError(t, err)
	require.Empty(t, sessions)
}
