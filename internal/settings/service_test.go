// AngelaMos | 2026
// service_test.go

package settings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
)

type countingBootstrapper struct {
	starts int
}

func (b *countingBootstrapper) Start(context.Context) {
	b.starts++
}

func newService(t *testing.T, chatEnabled bool) (*settings.Service, *countingBootstrapper) {
	t.Helper()

	clock := core.NewManualClock(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
	store := memstore.New(clock)
	svc := settings.NewService(store, store.DB(), store.Settings, clock, chatEnabled)
	boot := &countingBootstrapper{}
	svc.SetBootstrapper(boot)
	return svc, boot
}

func ptr[T any](v T) *T { return &v }

func TestUpdateConfig(t *testing.T) {
	svc, _ := newService(t, true)
	ctx := context.Background()

	st, err := svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, st.RolesConfigured)
	require.Equal(t, int64(200), st.VerifiedBonusPoints)
	require.Equal(t, int64(500), st.OnboardingBonusPoints)

	st, err = svc.UpdateConfig(ctx, settings.UpdateConfigRequest{
		VerifiedRoleID:    ptr("111"),
		OnboardingRoleIDs: []string{"222", "", "333", "222"},
	})
	require.NoError(t, err)
	require.True(t, st.RolesConfigured)
	require.Equal(t, settings.RoleIDs{"222", "333"}, st.OnboardingRoleIDs)

	st, err = svc.UpdateConfig(ctx, settings.UpdateConfigRequest{VerifiedBonusPoints: ptr(int64(75))})
	require.NoError(t, err)
	require.Equal(t, int64(75), st.VerifiedBonusPoints)
	require.Equal(t, "111", st.VerifiedRoleID)

	_, err = svc.UpdateConfig(ctx, settings.UpdateConfigRequest{
		VerifiedRoleID:        ptr("999"),
		OnboardingBonusPoints: ptr(int64(0)),
	})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	st, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "111", st.VerifiedRoleID)
	require.Equal(t, int64(500), st.OnboardingBonusPoints)
}

func TestEnableLatchesFirstTime(t *testing.T) {
	svc, boot := newService(t, true)
	ctx := context.Background()

	res, err := svc.Enable(ctx)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.True(t, res.FirstTime)
	require.True(t, res.BootstrapStarted)
	require.NotNil(t, res.Settings.EnabledAt)

	res, err = svc.Enable(ctx)
	require.NoError(t, err)
	require.False(t, res.Changed)

	res, err = svc.Disable(ctx)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.False(t, res.Settings.Enabled)
	require.True(t, res.Settings.FirstTimeEnabled)

	res, err = svc.Disable(ctx)
	require.NoError(t, err)
	require.False(t, res.Changed)

	res, err = svc.Enable(ctx)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.False(t, res.FirstTime)
	require.Equal(t, 1, boot.starts)
}

func TestFirstEnableNeedsChat(t *testing.T) {
	svc, boot := newService(t, false)

	_, err := svc.Enable(context.Background())
	require.ErrorIs(t, err, core.ErrChatUnavailable)
	require.Zero(t, boot.starts)

	st, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.False(t, st.Enabled)
	require.False(t, st.FirstTimeEnabled)
}

type verifier struct{}

func (verifier) VerifyAccessToken(_ context.Context, token string) (*middleware.AccessTokenClaims, error) {
	switch token {
	case "root-token":
		return &middleware.AccessTokenClaims{UserID: "root"}, nil
	case "user-token":
		return &middleware.AccessTokenClaims{UserID: "user"}, nil
	}
	return nil, core.ErrTokenInvalid
}

type admins struct{}

func (admins) VerifyAdmin(_ context.Context, userID string) (bool, error) {
	return userID == "root", nil
}

func call(t *testing.T, h http.Handler, method, path, token, body string) (int, core.Response) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestAdminEconomyRoutes(t *testing.T) {
	svc, _ := newService(t, false)

	r := chi.NewRouter()
	settings.NewHandler(svc).RegisterAdminRoutes(
		r,
		middleware.Authenticator(verifier{}),
		middleware.RequireAdmin(admins{}),
	)

	code, _ := call(t, r, http.MethodGet, "/admin/economy/", "user-token", "")
	require.Equal(t, http.StatusForbidden, code)

	code, resp := call(t, r, http.MethodPut, "/admin/economy/config", "root-token", `{"verified_role_id":"abc"}`)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "verifiedroleid is invalid", resp.Error.Message)

	code, resp = call(t, r, http.MethodPut, "/admin/economy/config", "root-token", `{"verified_role_id":"42","verified_bonus_points":300}`)
	require.Equal(t, http.StatusOK, code)
	data := resp.Data.(map[string]any)
	require.Equal(t, "42", data["verified_role_id"])
	require.Equal(t, float64(300), data["verified_bonus_points"])
	require.Equal(t, true, data["roles_configured"])

	code, resp = call(t, r, http.MethodPost, "/admin/economy/enable", "root-token", "")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "CHAT_UNAVAILABLE", resp.Error.Code)
}
