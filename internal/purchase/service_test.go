// AngelaMos | 2026
// service_test.go

package purchase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/memstore"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/product"
	"github.com/carterperez-dev/pitchfork-economy/internal/purchase"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
)

type fixture struct {
	store    *memstore.Store
	clock    *core.ManualClock
	ledger   *ledger.Service
	coord    *purchase.Coordinator
	recorder *notify.Recorder
}

func newFixture(t *testing.T, cfg purchase.Config) *fixture {
	t.Helper()

	clock := core.NewManualClock(time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC))
	store := memstore.New(clock)
	store.SetEconomy(func(s *settings.Settings) { s.Enabled = true })

	rec := &notify.Recorder{}
	ledgerSvc := ledger.NewService(store, store.DB(), store.Ledger, store.Settings, clock, 3)
	downloads := fulfillment.NewDownloadService(store.DB(), store.Fulfillment, clock, fulfillment.DownloadConfig{
		UploadDir: t.TempDir(),
		TokenTTL:  24 * time.Hour,
		MaxUses:   5,
	})
	roles := fulfillment.NewRoleService(store.DB(), store.Fulfillment)

	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	coord := purchase.NewCoordinator(
		store,
		store.DB(),
		store.Purchases,
		store.Products,
		ledgerSvc,
		downloads,
		roles,
		rec,
		cfg,
	)

	return &fixture{store: store, clock: clock, ledger: ledgerSvc, coord: coord, recorder: rec}
}

func (f *fixture) addProduct(t *testing.T, p product.Product) int64 {
	t.Helper()
	if p.Name == "" {
		p.Name = "Sticker"
	}
	if p.DeliveryMethod == "" {
		p.DeliveryMethod = product.DeliveryNone
	}
	if p.Type == "" {
		p.Type = product.TypePhysical
	}
	p.IsActive = true
	require.NoError(t, f.store.Products(nil).Create(context.Background(), &p))
	return p.ID
}

func (f *fixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.ledger.Give(context.Background(), userID, amount)
	require.NoError(t, err)
}

func stock(n int) *int {
	return &n
}

func TestLastUnitSellsOnce(t *testing.T) {
	f := newFixture(t, purchase.Config{})
	ctx := context.Background()

	id := f.addProduct(t, product.Product{Price: 100, Stock: stock(1)})
	buyers := []string{"alice", "bob", "carol"}
	for _, b := range buyers {
		f.fund(t, b, 100)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  int
	)
	for _, b := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.Purchase(ctx, b, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, b)
				return
			}
			assert.ErrorIs(t, err, core.ErrUnavailable)
			losers++
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Equal(t, 2, losers)

	p, ok := f.store.Product(id)
	require.True(t, ok)
	require.Equal(t, 0, *p.Stock)

	for _, b := range buyers {
		u, _ := f.store.User(b)
		if b == winners[0] {
			require.Zero(t, u.Balance)
			require.Len(t, f.store.PurchasesOf(b), 1)
			continue
		}
		require.Equal(t, int64(100), u.Balance)
		require.Empty(t, f.store.PurchasesOf(b))
	}
}

func TestInsufficientBalanceChangesNothing(t *testing.T) {
	f := newFixture(t, purchase.Config{})
	ctx := context.Background()

	id := f.addProduct(t, product.Product{Price: 100, Stock: stock(3)})
	f.fund(t, "u1", 99)

	_, err := f.coord.Purchase(ctx, "u1", id)
	require.ErrorIs(t, err, core.ErrInsufficient)

	u, _ := f.store.User("u1")
	require.Equal(t, int64(99), u.Balance)
	p, _ := f.store.Product(id)
	require.Equal(t, 3, *p.Stock)
	require.Empty(t, f.store.PurchasesOf("u1"))
	require.Zero(t, f.recorder.Count(notify.KindPurchaseCreated))
}

func TestPurchasesClosed(t *testing.T) {
	f := newFixture(t, purchase.Config{Closed: true})

	id := f.addProduct(t, product.Product{Price: 1})
	f.fund(t, "u1", 10)

	_, err := f.coord.Purchase(context.Background(), "u1", id)
	require.ErrorIs(t, err, core.ErrClosed)
}

func TestUnavailableProducts(t *testing.T) {
	f := newFixture(t, purchase.Config{})
	ctx := context.Background()
	f.fund(t, "u1", 1000)

	soldOut := f.addProduct(t, product.Product{Price: 1, Stock: stock(0)})
	_, err := f.coord.Purchase(ctx, "u1", soldOut)
	require.ErrorIs(t, err, core.ErrUnavailable)

	broken := f.addProduct(t, product.Product{Price: 1, DeliveryMethod: product.DeliveryAutoRole})
	_, err = f.coord.Purchase(ctx, "u1", broken)
	require.ErrorIs(t, err, core.ErrUnavailable)

	_, err = f.coord.Purchase(ctx, "u1", 9999)
	require.ErrorIs(t, err, core.ErrNotFound)

	u, _ := f.store.User("u1")
	require.Equal(t, int64(1000), u.Balance)
}

func TestDeliveryMethods(t *testing.T) {
	f := newFixture(t, purchase.Config{})
	ctx := context.Background()
	f.fund(t, "u1", 1000)

	t.Run("code_gen", func(t *testing.T) {
		id := f.addProduct(t, product.Product{
			Price:          10,
			Type:           product.TypeCode,
			DeliveryMethod: product.DeliveryCodeGen,
			AutoDelivery:   true,
			DeliveryConfig: product.DeliveryConfig{product.ConfigCodeTemplate: "PF-{uuid}"},
		})
		r, err := f.coord.Purchase(ctx, "u1", id)
		require.NoError(t, err)
		require.Equal(t, purchase.StatusCompleted, r.Purchase.Status)
		require.True(t, strings.HasPrefix(r.Purchase.DeliveryInfo, "PF-"))
		require.NotContains(t, r.Purchase.DeliveryInfo, product.CodePlaceholder)
	})

	t.Run("manual", func(t *testing.T) {
		id := f.addProduct(t, product.Product{Price: 10, DeliveryMethod: product.DeliveryManual})
		r, err := f.coord.Purchase(ctx, "u1", id)
		require.NoError(t, err)
		require.Equal(t, purchase.StatusPendingDelivery, r.Purchase.Status)

		u, _ := f.store.User("u1")
		require.Contains(t, r.Purchase.DeliveryInfo, u.UUID.String())
	})

	t.Run("auto_role", func(t *testing.T) {
		id := f.addProduct(t, product.Product{
			Price:          10,
			Type:           product.TypeRole,
			DeliveryMethod: product.DeliveryAutoRole,
			AutoDelivery:   true,
			DeliveryConfig: product.DeliveryConfig{product.ConfigRoleID: "role-vip"},
		})
		r, err := f.coord.Purchase(ctx, "u1", id)
		require.NoError(t, err)
		require.Equal(t, purchase.StatusPendingDelivery, r.Purchase.Status)

		queued := f.store.RoleAssignments(r.Purchase.ID)
		require.Len(t, queued, 1)
		require.Equal(t, "role-vip", queued[0].RoleID)
		require.Equal(t, fulfillment.RolePending, queued[0].Status)
	})

	t.Run("download", func(t *testing.T) {
		id := f.addProduct(t, product.Product{
			Price:          10,
			Type:           product.TypeFile,
			DeliveryMethod: product.DeliveryDownload,
			AutoDelivery:   true,
			DeliveryConfig: product.DeliveryConfig{product.ConfigFilePath: "wallpapers/campus.png"},
		})
		r, err := f.coord.Purchase(ctx, "u1", id)
		require.NoError(t, err)
		require.Equal(t, purchase.StatusCompleted, r.Purchase.Status)
		require.True(t, strings.HasPrefix(r.DownloadURL, "/download/"))

		tokens := f.store.DownloadTokens(r.Purchase.ID)
		require.Len(t, tokens, 1)
		require.Equal(t, "campus.png", tokens[0].OriginalFilename)
		require.Equal(t, f.clock.Now().Add(24*time.Hour), tokens[0].ExpiresAt)

		history, _, err := f.coord.History(ctx, "u1", purchase.ListParams{})
		require.NoError(t, err)
		require.Equal(t, r.DownloadURL, history[0].DownloadURL)
	})

	t.Run("download without auto delivery", func(t *testing.T) {
		id := f.addProduct(t, product.Product{
			Price:          10,
			Type:           product.TypeFile,
			DeliveryMethod: product.DeliveryDownload,
			DeliveryConfig: product.DeliveryConfig{product.ConfigFilePath: "wallpapers/campus.png"},
		})
		r, err := f.coord.Purchase(ctx, "u1", id)
		require.NoError(t, err)
		require.Equal(t, purchase.StatusPendingDelivery, r.Purchase.Status)
		require.Empty(t, r.DownloadURL)
		require.Empty(t, f.store.DownloadTokens(r.Purchase.ID))

		u, _ := f.store.User("u1")
		require.Contains(t, r.Purchase.DeliveryInfo, u.UUID.String())
	})

	t.Run("role without auto delivery", func(t *testing.T) {
		id := f.addProduct(t, product.Product{
			Price:          10,
			Type:           product.TypeRole,
			DeliveryMethod: product.DeliveryAutoRole,
			DeliveryConfig: product.DeliveryConfig{product.ConfigRoleID: "role-vip"},
		})
		r, err := f.coord.Purchase(ctx, "u1", id)
		require.NoError(t, err)
		require.Equal(t, purchase.StatusPendingDelivery, r.Purchase.Status)
		require.Empty(t, f.store.RoleAssignments(r.Purchase.ID))
	})

	u, _ := f.store.User("u1")
	require.Equal(t, int64(1000-60), u.Balance)
	require.Equal(t, 6, f.recorder.Count(notify.KindPurchaseCreated))
}

func TestUnlimitedStockStaysUnlimited(t *testing.T) {
	f := newFixture(t, purchase.Config{})
	id := f.addProduct(t, product.Product{Price: 5})
	f.fund(t, "u1", 20)

	for i := 0; i < 4; i++ {
		r, err := f.coord.Purchase(context.Background(), "u1", id)
		require.NoError(t, err)
		require.Nil(t, r.StockLeft)
	}

	_, err := f.coord.Purchase(context.Background(), "u1", id)
	require.ErrorIs(t, err, core.ErrInsufficient)
}

func TestResolveIsTerminal(t *testing.T) {
	f := newFixture(t, purchase.Config{})
	ctx := context.Background()

	id := f.addProduct(t, product.Product{Price: 10, DeliveryMethod: product.DeliveryManual})
	f.fund(t, "u1", 10)

	r, err := f.coord.Purchase(ctx, "u1", id)
	require.NoError(t, err)

	_, err = f.coord.Resolve(ctx, r.Purchase.ID, purchase.ResolveRequest{Status: purchase.StatusPendingDelivery})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	p, err := f.coord.Resolve(ctx, r.Purchase.ID, purchase.ResolveRequest{
		Status:       purchase.StatusCompleted,
		DeliveryInfo: "handed over at the front desk",
	})
	require.NoError(t, err)
	require.Equal(t, purchase.StatusCompleted, p.Status)
	require.Equal(t, "handed over at the front desk", p.DeliveryInfo)

	_, err = f.coord.Resolve(ctx, r.Purchase.ID, purchase.ResolveRequest{Status: purchase.StatusFailed})
	require.ErrorIs(t, err, purchase.ErrAlreadyResolved)

	_, err = f.coord.Resolve(ctx, 424242, purchase.ResolveRequest{Status: purchase.StatusFailed})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestAdminListFilters(t *testing.T) {
	f := newFixture(t, purchase.Config{})
	ctx := context.Background()

	manual := f.addProduct(t, product.Product{Price: 1, DeliveryMethod: product.DeliveryManual})
	instant := f.addProduct(t, product.Product{Price: 1})
	f.fund(t, "u1", 5)
	f.fund(t, "u2", 5)

	for _, call := range []struct {
		user string
		id   int64
	}{{"u1", manual}, {"u1", instant}, {"u2", manual}} {
		_, err := f.coord.Purchase(ctx, call.user, call.id)
		require.NoError(t, err)
	}

	pending, total, err := f.coord.AdminList(ctx, purchase.ListParams{Status: purchase.StatusPendingDelivery})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, pending, 2)

	mine, total, err := f.coord.AdminList(ctx, purchase.ListParams{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, mine, 2)
}
