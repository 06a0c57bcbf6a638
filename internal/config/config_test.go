// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/pitchfork_test")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("ECONOMY_TIMEZONE", "UTC")
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_GUILD_ID", "")
}

func TestLoadDefaults(t *testing.T) {
	baseEnv(t)

	c, err := load("")
	require.NoError(t, err)

	require.Equal(t, 8080, c.Server.Port)
	require.Equal(t, 30*time.Second, c.Server.ReadTimeout)
	require.Equal(t, 24*time.Hour, c.Download.TokenTTL)
	require.Equal(t, 5, c.Download.MaxUses)
	require.Equal(t, 12, c.Workers.RoleMaxAttempts)
	require.Equal(t, "09:30", c.Economy.BirthdayCheckTime)
	require.False(t, c.Economy.PurchasesClosed)
	require.False(t, c.ChatEnabled())
	require.True(t, c.IsDevelopment())
}

func TestLoadFileThenEnv(t *testing.T) {
	baseEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("PURCHASES_CLOSED", "true")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
  host: 127.0.0.1
download:
  max_uses: 3
`), 0o600))

	c, err := load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, c.Server.Port)
	require.Equal(t, "127.0.0.1:9090", c.Server.Address())
	require.Equal(t, 3, c.Download.MaxUses)
	require.True(t, c.Economy.PurchasesClosed)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"missing database": {"DATABASE_URL": ""},
		"token without guild": {
			"DISCORD_TOKEN": "bot-token",
		},
		"bad birthday clock": {"BIRTHDAY_CHECK_TIME": "9am"},
		"zero downloads":     {"DOWNLOAD_MAX_USES": "0"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			baseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}

			_, err := load("")
			require.Error(t, err)
		})
	}
}
