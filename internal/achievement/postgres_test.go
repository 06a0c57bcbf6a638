// AngelaMos | 2026
// postgres_test.go

package achievement_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/achievement"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/ledger"
	"github.com/carterperez-dev/pitchfork-economy/internal/limiter"
	"github.com/carterperez-dev/pitchfork-economy/internal/notify"
	"github.com/carterperez-dev/pitchfork-economy/internal/pgtest"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
)

func TestPostgresEvaluateAwardsOnce(t *testing.T) {
	db := pgtest.New(t)
	pgtest.EnableEconomy(t, db)
	ctx := context.Background()

	clock := core.NewManualClock(time.Now().UTC())
	ledgerSvc := ledger.NewService(db, db.DB, ledger.NewRepository, settings.NewRepository, clock, 10)
	rec := &notify.Recorder{}
	svc := achievement.NewService(db, db.DB, achievement.NewRepository, ledgerSvc, rec, 10)

	_, err := ledgerSvc.RecordActivity(ctx, "u1", limiter.SourceMessages, 150)
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted []string
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			awards, err := svc.EvaluateAll(ctx, "u1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			granted = append(granted, names(awards)...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.ElementsMatch(t, []string{"First Steps", "Chatterbox"}, granted)

	var held int
	require.NoError(t, db.DB.GetContext(ctx, &held,
		`SELECT COUNT(*) FROM user_achievements WHERE user_id = $1`, "u1"))
	require.Equal(t, 2, held)

	var balance int64
	require.NoError(t, db.DB.GetContext(ctx, &balance,
		`SELECT balance FROM users WHERE id = $1`, "u1"))
	require.Equal(t, int64(60), balance)
	require.Equal(t, 2, rec.Count(notify.KindAchievementAwarded))
}

func TestPostgresAwardInsertsOnce(t *testing.T) {
	db := pgtest.New(t)
	ctx := context.Background()

	_, err := db.DB.ExecContext(ctx, `INSERT INTO users (id) VALUES ($1)`, "u1")
	require.NoError(t, err)

	var id int64
	require.NoError(t, db.DB.GetContext(ctx, &id,
		`SELECT id FROM achievements WHERE name = $1`, "Legend"))

	repo := achievement.NewRepository(db.DB)

	const workers = 10
	var (
		wg       sync.WaitGroup
		inserted atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Award(ctx, "u1", id)
			if assert.NoError(t, err) && ok {
				inserted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), inserted.Load())
}
