// AngelaMos | 2026
// pgtest.go

// Package pgtest runs repository tests against a real postgres. One
// container is started per test binary and every test gets its own
// migrated database inside it.
package pgtest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/carterperez-dev/pitchfork-economy/internal/config"
	"github.com/carterperez-dev/pitchfork-economy/internal/core"
)

const (
	image       = "postgres:16-alpine"
	lockTimeout = 5 * time.Second
	poolSize    = 32
)

var (
	startOnce sync.Once
	baseURL   string
	startErr  error
	seq       atomic.Int64
)

// New returns a migrated database private to t. The test is skipped under
// -short or when no container runtime is reachable.
func New(t *testing.T) *core.Database {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres tests skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	startOnce.Do(func() {
		baseURL, startErr = start(context.Background())
	})
	require.NoError(t, startErr)

	ctx := context.Background()
	admin, err := open(ctx, baseURL, "pgtest-admin")
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() }) //nolint:errcheck // test teardown

	name := fmt.Sprintf("pf_%d_%d", os.Getpid(), seq.Add(1))
	_, err = admin.DB.ExecContext(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err)

	dsn, err := withDatabase(baseURL, name)
	require.NoError(t, err)

	db, err := open(ctx, dsn, "test")
	require.NoError(t, err)
	t.Cleanup(func() {
		//nolint:errcheck // test teardown
		_ = db.Close()
		//nolint:errcheck // test teardown
		_, _ = admin.DB.ExecContext(ctx, "DROP DATABASE IF EXISTS "+name+" WITH (FORCE)")
	})

	_, err = core.MigrateDB(ctx, db.DB.DB)
	require.NoError(t, err)
	return db
}

// EnableEconomy flips the settings row the way the first /enable does.
func EnableEconomy(t *testing.T, db *core.Database) {
	t.Helper()

	_, err := db.DB.ExecContext(context.Background(), `
		UPDATE economy_settings
		SET enabled = TRUE, first_time_enabled = TRUE, enabled_at = NOW()
		WHERE id = 1`)
	require.NoError(t, err)
}

// start runs the shared container. It is left to the testcontainers
// reaper, which removes it when the test binary exits.
func start(ctx context.Context) (string, error) {
	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("pitchfork"),
		postgres.WithUsername("pitchfork"),
		postgres.WithPassword("pitchfork"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", fmt.Errorf("container connection string: %w", err)
	}
	return dsn, nil
}

func open(ctx context.Context, dsn, component string) (*core.Database, error) {
	return core.NewDatabase(ctx, config.DatabaseConfig{
		URL:          dsn,
		MaxOpenConns: poolSize,
		MaxIdleConns: poolSize / 4,
		LockTimeout:  lockTimeout,
	}, component)
}

func withDatabase(dsn, name string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	u.Path = "/" + name
	return u.String(), nil
}
