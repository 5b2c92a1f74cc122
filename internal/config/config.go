// Package config defines the daihard configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

// Config is the root configuration. Fields come from a TOML file and may be
// overridden by DAIHARD_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Listing  ListingConfig  `toml:"listing"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig points at the JSON-RPC endpoint and the trade factory.
type ChainConfig struct {
	RPCURL         string   `toml:"rpc_url"`
	FactoryAddress string   `toml:"factory_address"`
	TokenDecimals  int32    `toml:"token_decimals"`
	RequestsPerSec float64  `toml:"requests_per_sec"`
	Burst          int      `toml:"burst"`
	CallTimeout    duration `toml:"call_timeout"`
}

// Factory returns the parsed factory address. Call after Validate.
func (c ChainConfig) Factory() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// ListingConfig controls what the listing shows and how often it refreshes.
type ListingConfig struct {
	OpenMode        string   `toml:"open_mode"`
	User            string   `toml:"user"`
	RefreshInterval duration `toml:"refresh_interval"`
	ConsoleRows     int      `toml:"console_rows"`
}

// ParsedOpenMode returns the open mode. Call after Validate.
func (c ListingConfig) ParsedOpenMode() domain.OpenMode {
	m, _ := domain.ParseOpenMode(c.OpenMode)
	return m
}

// UserAddress returns nil when no user is configured.
func (c ListingConfig) UserAddress() *common.Address {
	if strings.TrimSpace(c.User) == "" {
		return nil
	}
	a := common.HexToAddress(c.User)
	return &a
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	ParamsTTL  duration `toml:"params_ttl"`
}

// PostgresConfig holds the trade archive connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds object storage parameters for listing exports.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Prefix         string   `toml:"prefix"`
	ExportInterval duration `toml:"export_interval"`
}

// duration lets TOML carry strings like "5s" or "10m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	APIKey         string   `toml:"api_key"`
	RequestsPerSec float64  `toml:"requests_per_sec"`
	Burst          int      `toml:"burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	MaxPerMinute      float64  `toml:"max_per_minute"`
}

// Enabled reports whether any channel is configured.
func (n NotifyConfig) Enabled() bool {
	return (n.TelegramToken != "" && n.TelegramChatID != "") || n.DiscordWebhookURL != ""
}

// Defaults returns a Config with the values from config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:         "http://localhost:8545",
			TokenDecimals:  18,
			RequestsPerSec: 20,
			Burst:          40,
			CallTimeout:    duration{10 * time.Second},
		},
		Listing: ListingConfig{
			OpenMode:        "seller",
			RefreshInterval: duration{5 * time.Second},
			ConsoleRows:     30,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			ParamsTTL:  duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "daihard",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "daihard-listing",
			ForcePathStyle: true,
			Prefix:         "listing",
			ExportInterval: duration{10 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           8000,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RequestsPerSec: 10,
			Burst:          20,
		},
		Notify: NotifyConfig{
			Events:       []string{"trade_listed"},
			MaxPerMinute: 20,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"serve": true,
	"watch": true,
	"full":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, watch, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if !common.IsHexAddress(c.Chain.FactoryAddress) {
		errs = append(errs, fmt.Sprintf("chain: factory_address %q is not a hex address", c.Chain.FactoryAddress))
	}
	if c.Chain.TokenDecimals < 0 || c.Chain.TokenDecimals > 36 {
		errs = append(errs, fmt.Sprintf("chain: token_decimals must be 0-36, got %d", c.Chain.TokenDecimals))
	}
	if c.Chain.RequestsPerSec > 0 && c.Chain.Burst < 1 {
		errs = append(errs, "chain: burst must be >= 1 when requests_per_sec is set")
	}

	// Listing
	if _, err := domain.ParseOpenMode(c.Listing.OpenMode); err != nil {
		errs = append(errs, fmt.Sprintf("listing: open_mode %q must be seller or buyer", c.Listing.OpenMode))
	}
	if c.Listing.User != "" && !common.IsHexAddress(c.Listing.User) {
		errs = append(errs, fmt.Sprintf("listing: user %q is not a hex address", c.Listing.User))
	}
	if c.Listing.RefreshInterval.Duration <= 0 {
		errs = append(errs, "listing: refresh_interval must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.ExportInterval.Duration <= 0 {
			errs = append(errs, "s3: export_interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RequestsPerSec > 0 && c.Server.Burst < 1 {
			errs = append(errs, "server: burst must be >= 1 when requests_per_sec is set")
		}
	}
	if strings.EqualFold(c.Mode, "serve") && !c.Server.Enabled {
		errs = append(errs, "server: must be enabled in serve mode")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
