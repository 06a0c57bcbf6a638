// AngelaMos | 2026
// postgres_test.go

package fulfillment_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/fulfillment"
	"github.com/carterperez-dev/pitchfork-economy/internal/pgtest"
)

func seedPurchases(t *testing.T, db *core.Database, userID string, n int) []int64 {
	t.Helper()
	ctx := context.Background()

	_, err := db.DB.ExecContext(ctx, `INSERT INTO users (id) VALUES ($1)`, userID)
	require.NoError(t, err)

	var productID int64
	require.NoError(t, db.DB.GetContext(ctx, &productID, `
		INSERT INTO products (name, price, delivery_method)
		VALUES ('Role', 10, 'auto_role') RETURNING id`))

	ids := make([]int64, n)
	for i := range ids {
		require.NoError(t, db.DB.GetContext(ctx, &ids[i], `
			INSERT INTO purchases (user_id, product_id, points_spent, status)
			VALUES ($1, $2, 10, 'pending_delivery') RETURNING id`, userID, productID))
	}
	return ids
}

func TestPostgresClaimsAreDisjoint(t *testing.T) {
	db := pgtest.New(t)
	ctx := context.Background()

	purchases := seedPurchases(t, db, "u1", 20)
	for i, pid := range purchases {
		err := fulfillment.NewRepository(db.DB).InsertRoleAssignment(ctx, &fulfillment.RoleAssignment{
			UserID:     "u1",
			RoleID:     fmt.Sprintf("role-%d", i),
			PurchaseID: pid,
		})
		require.NoError(t, err)
	}
	now := time.Now().UTC().Add(time.Second)

	const workers = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = map[int64]int{}
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.WithTx(ctx, func(tx core.DBTX) error {
				batch, err := fulfillment.NewRepository(tx).ClaimRoleAssignments(ctx, now, time.Minute, 4)
				if err != nil {
					return err
				}
				mu.Lock()
				for _, a := range batch {
					claimed[a.ID]++
				}
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NotEmpty(t, claimed)
	for id, n := range claimed {
		require.Equal(t, 1, n, "assignment %d claimed twice", id)
	}

	rest, err := fulfillment.NewRepository(db.DB).ClaimRoleAssignments(ctx, now, time.Minute, 50)
	require.NoError(t, err)
	for _, a := range rest {
		require.NotContains(t, claimed, a.ID)
	}
	require.Equal(t, len(purchases), len(claimed)+len(rest))
}

func TestPostgresRedeemRespectsMaxUses(t *testing.T) {
	db := pgtest.New(t)
	ctx := context.Background()
	now := time.Now().UTC()
	repo := fulfillment.NewRepository(db.DB)

	purchases := seedPurchases(t, db, "u1", 1)
	require.NoError(t, repo.InsertDownloadToken(ctx, &fulfillment.DownloadToken{
		Token:      "tok-1",
		UserID:     "u1",
		PurchaseID: purchases[0],
		FilePath:   "guide.pdf",
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}))

	const (
		maxUses  = 3
		attempts = 10
	)
	var (
		wg       sync.WaitGroup
		redeemed atomic.Int32
		refused  atomic.Int32
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RedeemDownloadToken(ctx, "tok-1", "u1", now, maxUses)
			switch {
			case err == nil:
				redeemed.Add(1)
			case assert.ErrorIs(t, err, core.ErrNotFound):
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(maxUses), redeemed.Load())
	require.Equal(t, int32(attempts-maxUses), refused.Load())

	tok, err := repo.GetDownloadToken(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, maxUses, tok.DownloadCount)
	require.True(t, tok.Downloaded)

	_, err = repo.RedeemDownloadToken(ctx, "tok-1", "intruder", now, maxUses+10)
	require.ErrorIs(t, err, core.ErrNotFound)
}
