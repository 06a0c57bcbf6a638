// AngelaMos | 2026
// handler_test.go

package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/admin"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
	"github.com/carterperez-dev/pitchfork-economy/internal/user"
)

type noPurchases struct{}

func (noPurchases) AdminList(context.Context, purchase.ListParams) ([]purchase.Detail, int, error) {
	return nil, 0, nil
}

type rootOnly struct{}

func (rootOnly) VerifyAccessToken(_ context.Context, token string) (*middleware.AccessTokenClaims, error) {
	if token != "root-token" {
		return nil, core.ErrTokenInvalid
	}
	return &middleware.AccessTokenClaims{UserID: "root"}, nil
}

func (rootOnly) VerifyAdmin(_ context.Context, userID string) (bool, error) {
	return userID == "root", nil
}

func newRouter(t *testing.T, dbPing func(context.Context) error) (http.Handler, *ledger.Service) {
	t.Helper()

	clock := core.NewManualClock(time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC))
	store := memstore.New(clock)
	store.SeedAchievements()
	store.SetEconomy(func(s *settings.Settings) {
		s.Enabled = true
		s.FirstTimeEnabled = true
	})

	ledgerSvc := ledger.NewService(store, store.DB(), store.Ledger, store.Settings, clock, 3)
	achievements := achievement.NewService(store, store.DB(), store.Achievements, ledgerSvc, &notify.Recorder{}, 3)

	h := admin.NewHandler(admin.HandlerConfig{
		DBPing:       dbPing,
		Ledger:       ledgerSvc,
		Users:        user.NewService(store.Users(nil), nil, 0),
		Achievements: achievements,
		Purchases:    noPurchases{},
	})

	r := chi.NewRouter()
	h.RegisterRoutes(r, middleware.Authenticator(rootOnly{}), middleware.RequireAdmin(rootOnly{}))
	return r, ledgerSvc
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer root-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]any)
	return rec.Code, data
}

func TestSystemStats(t *testing.T) {
	router, ledgerSvc := newRouter(t, func(context.Context) error { return errors.New("down") })

	_, err := ledgerSvc.Give(context.Background(), "u1", 120)
	require.NoError(t, err)
	_, err = ledgerSvc.Give(context.Background(), "u2", 30)
	require.NoError(t, err)

	code, data := get(t, router, "/admin/stats")
	require.Equal(t, http.StatusOK, code)

	db := data["database"].(map[string]any)
	require.Equal(t, false, db["healthy"])
	redis := data["redis"].(map[string]any)
	require.Equal(t, false, redis["healthy"])

	economy := data["economy"].(map[string]any)
	require.Equal(t, float64(2), economy["users"])
	require.Equal(t, float64(150), economy["circulating"])
	require.Equal(t, float64(2), economy["active_earners_7d"])
}

func TestUserDetail(t *testing.T) {
	router, ledgerSvc := newRouter(t, nil)

	_, err := ledgerSvc.Give(context.Background(), "u1", 40)
	require.NoError(t, err)

	code, data := get(t, router, "/admin/users/u1")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "u1", data["user"].(map[string]any)["id"])

	entries := data["ledger"].([]any)
	require.Len(t, entries, 1)
	require.Equal(t, float64(40), entries[0].(map[string]any)["amount"])
	require.Equal(t, float64(0), data["purchases_total"])

	code, _ = get(t, router, "/admin/users/nobody")
	require.Equal(t, http.StatusNotFound, code)
}
