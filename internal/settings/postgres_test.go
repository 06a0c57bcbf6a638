// AngelaMos | 2026
// postgres_test.go

package settings_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pitchfork-economy/internal/core"
	"github.com/carterperez-dev/pitchfork-economy/internal/pgtest"
	"github.com/carterperez-dev/pitchfork-economy/internal/settings"
)

func TestPostgresFirstEnableLatches(t *testing.T) {
	db := pgtest.New(t)
	ctx := context.Background()

	svc := settings.NewService(db, db.DB, settings.NewRepository, core.NewManualClock(time.Now().UTC()), true)

	const admins = 4
	var (
		wg        sync.WaitGroup
		firstTime atomic.Int32
	)
	for range admins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Enable(ctx)
			if assert.NoError(t, err) && res.FirstTime {
				firstTime.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), firstTime.Load())

	_, err := svc.Disable(ctx)
	require.NoError(t, err)

	_, err = db.DB.ExecContext(ctx, `UPDATE economy_settings SET first_time_enabled = FALSE WHERE id = 1`)
	require.Error(t, err)

	cur, err := svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, cur.Enabled)
	require.True(t, cur.FirstTimeEnabled)

	again, err := svc.Enable(ctx)
	require.NoError(t, err)
	require.True(t, again.Changed)
	require.False(t, again.FirstTime)
}
