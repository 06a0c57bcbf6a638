// AngelaMos | 2026
// postgres_test.go

package ledger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/pgtest"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
)

func newPostgresLedger(t *testing.T) (*ledger.Service, *core.Database) {
	t.Helper()

	db := pgtest.New(t)
	pgtest.EnableEconomy(t, db)

	clock := core.NewManualClock(time.Now().UTC())
	svc := ledger.NewService(db, db.DB, ledger.NewRepository, settings.NewRepository, clock, 10)
	return svc, db
}

func balanceOf(t *testing.T, db *core.Database, userID string) int64 {
	t.Helper()

	var balance int64
	require.NoError(t, db.DB.GetContext(context.Background(), &balance,
		`SELECT balance FROM users WHERE id = $1`, userID))
	return balance
}

func TestPostgresDebitsNeverOverdraw(t *testing.T) {
	svc, db := newPostgresLedger(t)
	ctx := context.Background()

	_, err := svc.Give(ctx, "u1", 100)
	require.NoError(t, err)

	const spenders = 12
	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	for range spenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Debit(ctx, ledger.DebitRequest{UserID: "u1", Amount: 30, Reason: "test"})
			if assert.NoError(t, err) && res.Applied {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(3), applied.Load())
	require.Equal(t, int64(10), balanceOf(t, db, "u1"))

	var entries int
	require.NoError(t, db.DB.GetContext(ctx, &entries,
		`SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1`, "u1"))
	require.Equal(t, 4, entries)
}

func TestPostgresDailyClaimOncePerWindow(t *testing.T) {
	svc, db := newPostgresLedger(t)
	ctx := context.Background()

	const claimers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		cooldowns atomic.Int32
	)
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClaimDaily(ctx, "u1")
			switch {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, core.ErrCooldown):
				cooldowns.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), successes.Load())
	require.Equal(t, int32(claimers-1), cooldowns.Load())
	require.Equal(t, limiter.DailyAmount, balanceOf(t, db, "u1"))

	var claims int
	require.NoError(t, db.DB.GetContext(ctx, &claims,
		`SELECT daily_claims_count FROM users WHERE id = $1`, "u1"))
	require.Equal(t, 1, claims)
}

func TestPostgresCapHoldsUnderConcurrency(t *testing.T) {
	svc, db := newPostgresLedger(t)
	ctx := context.Background()

	_, err := svc.Give(ctx, "u1", 1)
	require.NoError(t, err)
	_, err = db.DB.ExecContext(ctx, `
		UPDATE users SET campus_photos_count = $2 WHERE id = $1`,
		"u1", limiter.MaxCampusPhotos-2)
	require.NoError(t, err)

	const uploads = 10
	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for range uploads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RecordCampusPhoto(ctx, "u1")
			if err == nil && res.Applied {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(2), granted.Load())

	var count int
	require.NoError(t, db.DB.GetContext(ctx, &count,
		`SELECT campus_photos_count FROM users WHERE id = $1`, "u1"))
	require.Equal(t, limiter.MaxCampusPhotos, count)
	require.Equal(t, 1+2*limiter.CampusPhotoAmount, balanceOf(t, db, "u1"))
}

func TestPostgresRoleBonusAppliesOnce(t *testing.T) {
	svc, db := newPostgresLedger(t)
	ctx := context.Background()

	const events = 6
	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	for range events {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ApplyRoleBonus(ctx, "u1", ledger.BonusVerified, false)
			if assert.NoError(t, err) && res.Applied {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), applied.Load())
	require.Equal(t, limiter.DefaultVerifiedBonus, balanceOf(t, db, "u1"))
}

func TestPostgresGetUserDoesNotCreateRows(t *testing.T) {
	db := pgtest.New(t)
	ctx := context.Background()

	_, err := ledger.NewRepository(db.DB).GetUser(ctx, "ghost")
	require.ErrorIs(t, err, core.ErrNotFound)

	var rows int
	require.NoError(t, db.DB.GetContext(ctx, &rows, `SELECT COUNT(*) FROM users`))
	require.Zero(t, rows)
}
