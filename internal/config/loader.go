package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults, then applies .env and
// DAIHARD_* overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides lets operators inject secrets and endpoints at deploy
// time. Unset or empty variables leave the field alone.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "DAIHARD_CHAIN_RPC_URL")
	setStr(&cfg.Chain.FactoryAddress, "DAIHARD_CHAIN_FACTORY_ADDRESS")
	setInt32(&cfg.Chain.TokenDecimals, "DAIHARD_CHAIN_TOKEN_DECIMALS")
	setFloat64(&cfg.Chain.RequestsPerSec, "DAIHARD_CHAIN_REQUESTS_PER_SEC")
	setInt(&cfg.Chain.Burst, "DAIHARD_CHAIN_BURST")
	setDuration(&cfg.Chain.CallTimeout, "DAIHARD_CHAIN_CALL_TIMEOUT")

	// ── Listing ──
	setStr(&cfg.Listing.OpenMode, "DAIHARD_LISTING_OPEN_MODE")
	setStr(&cfg.Listing.User, "DAIHARD_LISTING_USER")
	setDuration(&cfg.Listing.RefreshInterval, "DAIHARD_LISTING_REFRESH_INTERVAL")
	setInt(&cfg.Listing.ConsoleRows, "DAIHARD_LISTING_CONSOLE_ROWS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DAIHARD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DAIHARD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DAIHARD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DAIHARD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DAIHARD_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "DAIHARD_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.ParamsTTL, "DAIHARD_REDIS_PARAMS_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DAIHARD_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DAIHARD_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "DAIHARD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DAIHARD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DAIHARD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DAIHARD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DAIHARD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DAIHARD_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "DAIHARD_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "DAIHARD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "DAIHARD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DAIHARD_S3_REGION")
	setStr(&cfg.S3.Bucket, "DAIHARD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DAIHARD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DAIHARD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DAIHARD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DAIHARD_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "DAIHARD_S3_PREFIX")
	setDuration(&cfg.S3.ExportInterval, "DAIHARD_S3_EXPORT_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DAIHARD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DAIHARD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DAIHARD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DAIHARD_SERVER_API_KEY")
	setFloat64(&cfg.Server.RequestsPerSec, "DAIHARD_SERVER_REQUESTS_PER_SEC")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DAIHARD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DAIHARD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DAIHARD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DAIHARD_NOTIFY_EVENTS")
	setFloat64(&cfg.Notify.MaxPerMinute, "DAIHARD_NOTIFY_MAX_PER_MINUTE")

	// ── Top-level ──
	setStr(&cfg.Mode, "DAIHARD_MODE")
	setStr(&cfg.LogLevel, "DAIHARD_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
