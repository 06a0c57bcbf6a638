// AngelaMos | 2026
// download_test.go

package fulfillment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/middleware"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
)

type downloadFixture struct {
	store *memstore.Store
	clock *core.ManualClock
	svc   *fulfillment.DownloadService
	dir   string
}

func newDownloadFixture(t *testing.T, maxUses int) *downloadFixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wallpapers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wallpapers", "campus.png"), []byte("png-bytes"), 0o600))

	clock := core.NewManualClock(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))
	store := memstore.New(clock)
	svc := fulfillment.NewDownloadService(store.DB(), store.Fulfillment, clock, fulfillment.DownloadConfig{
		UploadDir: dir,
		TokenTTL:  24 * time.Hour,
		MaxUses:   maxUses,
	})

	return &downloadFixture{store: store, clock: clock, svc: svc, dir: dir}
}

func (f *downloadFixture) issue(t *testing.T, userID string) *fulfillment.DownloadToken {
	t.Helper()
	tok, err := f.svc.Issue(context.Background(), f.store.DB(), fulfillment.IssueRequest{
		UserID:     userID,
		PurchaseID: 1,
		FilePath:   "wallpapers/campus.png",
		FileName:   "campus.png",
	})
	require.NoError(t, err)
	return tok
}

func TestDownloadTokenExpiry(t *testing.T) {
	f := newDownloadFixture(t, 5)
	ctx := context.Background()
	tok := f.issue(t, "u1")

	f.clock.Advance(23*time.Hour + 59*time.Minute)
	got, path, err := f.svc.Redeem(ctx, tok.Token, "u1")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(f.dir, "wallpapers", "campus.png"), path)
	require.Equal(t, 1, got.DownloadCount)
	require.True(t, got.Downloaded)

	f.clock.Advance(2 * time.Minute)
	_, _, err = f.svc.Redeem(ctx, tok.Token, "u1")
	require.ErrorIs(t, err, fulfillment.ErrTokenExpired)
}

func TestDownloadTokenRefusals(t *testing.T) {
	f := newDownloadFixture(t, 2)
	ctx := context.Background()
	tok := f.issue(t, "u1")

	_, _, err := f.svc.Redeem(ctx, tok.Token, "u2")
	require.ErrorIs(t, err, fulfillment.ErrTokenForeign)

	_, _, err = f.svc.Redeem(ctx, "nope", "u1")
	require.ErrorIs(t, err, fulfillment.ErrTokenUnknown)

	_, _, err = f.svc.Redeem(ctx, "", "u1")
	require.ErrorIs(t, err, fulfillment.ErrTokenUnknown)

	for i := 0; i < 2; i++ {
		_, _, err = f.svc.Redeem(ctx, tok.Token, "u1")
		require.NoError(t, err)
	}
	_, _, err = f.svc.Redeem(ctx, tok.Token, "u1")
	require.ErrorIs(t, err, fulfillment.ErrTokenConsumed)
}

func TestMissingFileKeepsDownloadUse(t *testing.T) {
	f := newDownloadFixture(t, 1)
	ctx := context.Background()
	tok := f.issue(t, "u1")

	src := filepath.Join(f.dir, "wallpapers", "campus.png")
	require.NoError(t, os.Rename(src, src+".bak"))

	_, _, err := f.svc.Redeem(ctx, tok.Token, "u1")
	require.ErrorIs(t, err, fulfillment.ErrFileMissing)

	tokens := f.store.DownloadTokens(tok.PurchaseID)
	require.Len(t, tokens, 1)
	require.Zero(t, tokens[0].DownloadCount)
	require.False(t, tokens[0].Downloaded)

	require.NoError(t, os.Rename(src+".bak", src))

	got, _, err := f.svc.Redeem(ctx, tok.Token, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, got.DownloadCount)
}

func TestResolveStaysInsideUploadDir(t *testing.T) {
	f := newDownloadFixture(t, 5)

	path, err := f.svc.Resolve("wallpapers/campus.png")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(f.dir, "wallpapers", "campus.png"), path)

	_, err = f.svc.Resolve("/wallpapers/campus.png")
	require.NoError(t, err)

	for _, ref := range []string{"../secret.txt", "wallpapers/../../secret.txt", ".."} {
		_, err = f.svc.Resolve(ref)
		require.ErrorIs(t, err, core.ErrForbidden, ref)
	}

	_, err = f.svc.Resolve("wallpapers/missing.png")
	require.ErrorIs(t, err, fulfillment.ErrFileMissing)

	_, err = f.svc.Resolve("wallpapers")
	require.ErrorIs(t, err, fulfillment.ErrFileMissing)
}

func TestSweepAndBackfill(t *testing.T) {
	f := newDownloadFixture(t, 5)
	ctx := context.Background()

	prod := &product.Product{
		Name:           "Campus wallpaper",
		Price:          10,
		IsActive:       true,
		Type:           product.TypeFile,
		DeliveryMethod: product.DeliveryDownload,
		AutoDelivery:   true,
		DeliveryConfig: product.DeliveryConfig{product.ConfigFilePath: "wallpapers/campus.png"},
	}
	require.NoError(t, f.store.Products(nil).Create(ctx, prod))

	p := &purchase.Purchase{UserID: "u1", ProductID: prod.ID, PointsSpent: 10, Status: purchase.StatusCompleted}
	require.NoError(t, f.store.Purchases(nil).Create(ctx, p))

	n, err := f.svc.BackfillMissingTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.svc.BackfillMissingTokens(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	tokens := f.store.DownloadTokens(p.ID)
	require.Len(t, tokens, 1)
	require.Equal(t, "campus.png", tokens[0].OriginalFilename)

	sweeper := fulfillment.NewTokenSweeper(f.store.DB(), f.store.Fulfillment, f.clock, time.Hour, 7*24*time.Hour, quiet)

	f.clock.Advance(48 * time.Hour)
	deleted, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, deleted)

	f.clock.Advance(7 * 24 * time.Hour)
	deleted, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.Empty(t, f.store.DownloadTokens(p.ID))
}

type staticVerifier map[string]string

func (v staticVerifier) VerifyAccessToken(_ context.Context, token string) (*middleware.AccessTokenClaims, error) {
	userID, ok := v[token]
	if !ok {
		return nil, core.ErrTokenInvalid
	}
	return &middleware.AccessTokenClaims{UserID: userID}, nil
}

func TestDownloadEndpoint(t *testing.T) {
	f := newDownloadFixture(t, 1)
	tok := f.issue(t, "u1")

	h := fulfillment.NewHandler(f.svc, fulfillment.NewRoleService(f.store.DB(), f.store.Fulfillment), nil)
	r := chi.NewRouter()
	h.RegisterDownloadRoutes(r, middleware.Authenticator(staticVerifier{"t1": "u1", "t2": "u2"}))

	get := func(path, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+bearer)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := get(tok.URL(), "t2")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(tok.URL(), "t1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "png-bytes", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="campus.png"`)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = get(tok.URL(), "t1")
	require.Equal(t, http.StatusGone, rec.Code)

	var resp core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "GONE", resp.Error.Code)

	rec = get(fulfillment.DownloadPath("unknown"), "t1")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
