// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	OAuth     OAuthConfig     `koanf:"oauth"`
	Discord   DiscordConfig   `koanf:"discord"`
	Economy   EconomyConfig   `koanf:"economy"`
	Workers   WorkersConfig   `koanf:"workers"`
	Download  DownloadConfig  `koanf:"download"`
	AMQP      AMQPConfig      `koanf:"amqp"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
	LockTimeout     time.Duration `koanf:"lock_timeout"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type OAuthConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	RedirectURI  string        `koanf:"redirect_uri"`
	StateTTL     time.Duration `koanf:"state_ttl"`
}

// DiscordConfig holds the chat platform settings. An empty Token disables
// the chat surface; the web store keeps running without it.
type DiscordConfig struct {
	Token              string        `koanf:"token"`
	GuildID            string        `koanf:"guild_id"`
	GeneralChannelID   string        `koanf:"general_channel_id"`
	VerifiedRoleID     string        `koanf:"verified_role_id"`
	RestrictedRoleID   string        `koanf:"restricted_role_id"`
	UnverifiedRoleID   string        `koanf:"unverified_role_id"`
	AdminNotifyUserID  string        `koanf:"admin_notify_user_id"`
	RequestTimeout     time.Duration `koanf:"request_timeout"`
	RateLimitRetries   int           `koanf:"rate_limit_retries"`
	RegisterCommands   bool          `koanf:"register_commands"`
	CampusPhotoEmoji   string        `koanf:"campus_photo_emoji"`
	DailyEngageEmoji   string        `koanf:"daily_engage_emoji"`
	DepositCheckEmoji  string        `koanf:"deposit_check_emoji"`
	PresenceStatusText string        `koanf:"presence_status_text"`
}

type EconomyConfig struct {
	PurchasesClosed   bool          `koanf:"purchases_closed"`
	BirthdayCheckTime string        `koanf:"birthday_check_time"`
	Timezone          string        `koanf:"timezone"`
	LeaderboardTTL    time.Duration `koanf:"leaderboard_ttl"`
	LedgerRetries     int           `koanf:"ledger_retries"`
}

type WorkersConfig struct {
	RoleInterval       time.Duration `koanf:"role_interval"`
	RoleBatch          int           `koanf:"role_batch"`
	RoleLease          time.Duration `koanf:"role_lease"`
	RoleMaxAttempts    int           `koanf:"role_max_attempts"`
	RoleBackoffBase    time.Duration `koanf:"role_backoff_base"`
	RoleBackoffMax     time.Duration `koanf:"role_backoff_max"`
	RoleCallsPerSecond float64       `koanf:"role_calls_per_second"`
	TokenSweepInterval time.Duration `koanf:"token_sweep_interval"`
}

type DownloadConfig struct {
	UploadDir string        `koanf:"upload_dir"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	MaxUses   int           `koanf:"max_uses"`
	Retention time.Duration `koanf:"retention"`
}

type AMQPConfig struct {
	URL      string `koanf:"url"`
	Queue    string `koanf:"queue"`
	Prefetch int    `koanf:"prefetch"`
	Workers  int    `koanf:"workers"`
}

type RateLimitConfig struct {
	Requests         int           `koanf:"requests"`
	Window           time.Duration `koanf:"window"`
	Burst            int           `koanf:"burst"`
	PurchasesPerHour int           `koanf:"purchases_per_hour"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Pitchfork Economy",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,
		"database.lock_timeout":       "2s",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "pitchfork-economy",
		"jwt.audience":             "pitchfork-economy-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"oauth.state_ttl": "10m",

		"discord.request_timeout":      "10s",
		"discord.rate_limit_retries":   3,
		"discord.register_commands":    true,
		"discord.campus_photo_emoji":   "campus_photo",
		"discord.daily_engage_emoji":   "daily_engage",
		"discord.deposit_check_emoji":  "deposit_check",
		"discord.presence_status_text": "/help for pitchforks",

		"economy.purchases_closed":    false,
		"economy.birthday_check_time": "09:30",
		"economy.timezone":            "America/Denver",
		"economy.leaderboard_ttl":     "30s",
		"economy.ledger_retries":      5,

		"workers.role_interval":         "30s",
		"workers.role_batch":            10,
		"workers.role_lease":            "2m",
		"workers.role_max_attempts":     12,
		"workers.role_backoff_base":     "30s",
		"workers.role_backoff_max":      "30m",
		"workers.role_calls_per_second": 2.0,
		"workers.token_sweep_interval":  "1h",

		"download.upload_dir": "uploads",
		"download.token_ttl":  "24h",
		"download.max_uses":   5,
		"download.retention":  "0s",

		"amqp.queue":    "pitchfork.notifications",
		"amqp.prefetch": 10,
		"amqp.workers":  2,

		"rate_limit.requests":           100,
		"rate_limit.window":             "1m",
		"rate_limit.burst":              20,
		"rate_limit.purchases_per_hour": 30,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "pitchfork-economy",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"DISCORD_CLIENT_ID":           "oauth.client_id",
	"DISCORD_CLIENT_SECRET":       "oauth.client_secret",
	"DISCORD_REDIRECT_URI":        "oauth.redirect_uri",
	"DISCORD_TOKEN":               "discord.token",
	"DISCORD_GUILD_ID":            "discord.guild_id",
	"GENERAL_CHANNEL_ID":          "discord.general_channel_id",
	"VERIFIED_ROLE_ID":            "discord.verified_role_id",
	"RESTRICTED_ROLE_ID":          "discord.restricted_role_id",
	"UNVERIFIED_ROLE_ID":          "discord.unverified_role_id",
	"ADMIN_NOTIFY_USER_ID":        "discord.admin_notify_user_id",
	"PURCHASES_CLOSED":            "economy.purchases_closed",
	"ECONOMY_TIMEZONE":            "economy.timezone",
	"BIRTHDAY_CHECK_TIME":         "economy.birthday_check_time",
	"UPLOAD_DIR":                  "download.upload_dir",
	"DOWNLOAD_TOKEN_TTL":          "download.token_ttl",
	"DOWNLOAD_MAX_USES":           "download.max_uses",
	"ROLE_WORKER_INTERVAL":        "workers.role_interval",
	"AMQP_URL":                    "amqp.url",
	"AMQP_QUEUE":                  "amqp.queue",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.Discord.Token != "" && c.Discord.GuildID == "" {
		return fmt.Errorf("DISCORD_GUILD_ID is required when DISCORD_TOKEN is set")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.Download.TokenTTL <= 0 {
		return fmt.Errorf("download.token_ttl must be positive")
	}

	if c.Download.MaxUses < 1 {
		return fmt.Errorf("download.max_uses must be at least 1")
	}

	if c.Workers.RoleInterval <= 0 || c.Workers.RoleBatch < 1 {
		return fmt.Errorf("workers.role_interval and workers.role_batch must be positive")
	}

	if _, err := c.Economy.BirthdayClock(); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Economy.Timezone); err != nil {
		return fmt.Errorf("economy.timezone: %w", err)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) ChatEnabled() bool {
	return c.Discord.Token != ""
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BirthdayClock parses birthday_check_time as HH:MM and returns the offset
// from midnight.
func (e *EconomyConfig) BirthdayClock() (time.Duration, error) {
	parts := strings.Split(e.BirthdayCheckTime, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("economy.birthday_check_time must be HH:MM")
	}

	var hour, minute int
	if _, err := fmt.Sscanf(e.BirthdayCheckTime, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("economy.birthday_check_time: %w", err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("economy.birthday_check_time out of range")
	}

	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}
