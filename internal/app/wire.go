package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/avolkov/triarb/internal/blob/s3"
	"github.com/avolkov/triarb/internal/cache/redis"
	"github.com/avolkov/triarb/internal/config"
	"github.com/avolkov/triarb/internal/crypto"
	"github.com/avolkov/triarb/internal/domain"
	"github.com/avolkov/triarb/internal/exchange"
	"github.com/avolkov/triarb/internal/exchange/bybit"
	"github.com/avolkov/triarb/internal/notify"
	"github.com/avolkov/triarb/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function. Optional pieces (stores, caches, archiver) are nil when their
// backend is disabled in config.
type Dependencies struct {
	Exchange exchange.Exchange

	BookCache   domain.BookCache
	RateLimiter domain.RateLimiter

	RouteLogStore domain.RouteLogStore
	TradeStore    domain.TradeStore

	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (book cache + shared rate limiter) ---
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

		deps.BookCache = redis.NewBookCache(redisClient, cfg.Scanner.BookCacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- Exchange client ---
	// Scan mode works against public endpoints only, so a missing secret is
	// fine as long as none was configured.
	var secret string
	if cfg.Exchange.APISecret != "" || cfg.Exchange.EncryptedSecretPath != "" {
		var err error
		secret, err = crypto.LoadSecret(crypto.SecretConfig{
			RawSecret:           cfg.Exchange.APISecret,
			EncryptedSecretPath: cfg.Exchange.EncryptedSecretPath,
			SecretPassword:      cfg.Exchange.SecretPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: exchange secret: %w", err)
		}
	}
	deps.Exchange = bybit.New(bybit.ClientConfig{
		BaseURL:      cfg.Exchange.BaseURL,
		APIKey:       cfg.Exchange.APIKey,
		APISecret:    secret,
		RecvWindowMs: int64(cfg.Exchange.RecvWindow),
		RateLimit:    cfg.Exchange.RateLimit,
		RateWindow:   cfg.Exchange.RateWindow.Duration,
	}, deps.RateLimiter)

	// --- PostgreSQL ---
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
		deps.RouteLogStore = postgres.NewRouteLogStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
	}

	// --- S3 blob storage ---
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if deps.RouteLogStore != nil && deps.TradeStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.RouteLogStore, deps.TradeStore, logger)
		}
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
	deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
