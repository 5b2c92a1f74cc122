package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/burnable-tech/DAIHard/internal/blob/s3"
	"github.com/burnable-tech/DAIHard/internal/cache/redis"
	"github.com/burnable-tech/DAIHard/internal/chain"
	"github.com/burnable-tech/DAIHard/internal/config"
	"github.com/burnable-tech/DAIHard/internal/domain"
	"github.com/burnable-tech/DAIHard/internal/notify"
	"github.com/burnable-tech/DAIHard/internal/server/handler"
	"github.com/burnable-tech/DAIHard/internal/store/postgres"
)

// Dependencies bundles the concrete collaborators the run modes use. Optional
// backends are nil when disabled in config.
type Dependencies struct {
	Reader chain.Reader

	// Optional
	SignalBus  domain.SignalBus
	TradeStore domain.TradeStore
	BlobWriter domain.BlobWriter

	Notifier *notify.Notifier

	// Checks probe each wired backend for /api/health.
	Checks map[string]handler.CheckFunc
}

// Wire connects to every configured backend and returns the dependencies with
// a cleanup func that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.CheckFunc)}

	// --- Chain ---
	eth, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, eth.Close)

	var reader chain.Reader = chain.New(eth, chain.Options{
		TokenDecimals:  cfg.Chain.TokenDecimals,
		RequestsPerSec: cfg.Chain.RequestsPerSec,
		Burst:          cfg.Chain.Burst,
		CallTimeout:    cfg.Chain.CallTimeout.Duration,
	}, logger)

	// --- Redis: parameters cache + signal bus ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		reader = chain.NewCachedReader(reader, redis.NewParametersCache(redisClient, cfg.Chain.TokenDecimals, cfg.Redis.ParamsTTL.Duration), logger)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Chain.Factory())
		deps.Checks["redis"] = redisClient.Ping
	}
	deps.Reader = reader

	// --- PostgreSQL trade archive ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: %w", err))
			}
		}
		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- S3 listing exports ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket not reachable yet, exports may fail",
				slog.String("bucket", cfg.S3.Bucket),
				slog.String("error", err.Error()),
			)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.MaxPerMinute, logger)

	return deps, cleanup, nil
}
