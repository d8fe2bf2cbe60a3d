package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/gibsonxiong/vtrader/internal/blob/s3"
	"github.com/gibsonxiong/vtrader/internal/cache/redis"
	"github.com/gibsonxiong/vtrader/internal/config"
	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/notify"
	"github.com/gibsonxiong/vtrader/internal/platform/binance"
	"github.com/gibsonxiong/vtrader/internal/store/postgres"
	"github.com/gibsonxiong/vtrader/internal/strategy"
	"github.com/gibsonxiong/vtrader/internal/strategy/builtins"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Bars domain.BarStore
	Runs domain.BacktestStore

	// Caches (nil when Redis is disabled)
	BarCache    domain.BarCache
	RateLimiter domain.RateLimiter

	// Exchange access
	Exchange *binance.Client
	Stream   *binance.WSClient

	// Blob storage (nil when S3 is disabled)
	Archiver *s3blob.ReportArchiver

	// Notifications
	Notifier *notify.Notifier

	// Strategy catalogue
	Registry *strategy.Registry
}

// needsStream returns true for modes that consume live market data.
func needsStream(mode string) bool {
	return mode == "record"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Bars = postgres.NewBarStore(pool)
	deps.Runs = postgres.NewBacktestStore(pool)

	// --- Redis (optional) ---
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BarCache = redis.NewBarCache(redisClient, cfg.Redis.BarTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- Binance ---
	deps.Exchange = binance.NewClient(cfg.Binance.RestHost)
	if needsStream(cfg.Mode) {
		deps.Stream = binance.NewWSClient(cfg.Binance.WsHost)
	}

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewReportArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Strategy catalogue ---
	deps.Registry = strategy.NewRegistry()
	builtins.Register(deps.Registry)

	return deps, cleanup, nil
}
