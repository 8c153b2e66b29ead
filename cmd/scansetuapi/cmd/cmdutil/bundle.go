// Package cmdutil builds the services shared by the scansetuapi subcommands.
package cmdutil

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/cache"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/config"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/bunx"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/events"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/mail"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/profile"
)

// NewLogger returns a development logger when debug is set.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewMailer picks SendGrid when an API key is configured and falls back to
// logging the messages.
func NewMailer(cfg *config.Config, logger *zap.Logger) mail.Sender {
	if cfg.Mailer.SendGridAPIKey == "" {
		return mail.NewLogSender(logger)
	}
	return mail.NewSendGridSender(cfg.Mailer.SendGridAPIKey, cfg.Mailer.FromName, cfg.Mailer.FromEmail, "")
}

// Bundle holds the services an admin command needs together with the
// connections behind them.
type Bundle struct {
	DB       *bun.DB
	Redis    *redis.Client
	Identity *identity.Service
	Profiles *profile.Service
}

// Close releases the database and Redis connections.
func (b *Bundle) Close() {
	if b == nil {
		return
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.DB != nil {
		bunx.Close(b.DB)
	}
}

// NewBundle connects to the database and wires the identity and profile
// services. Events go through Redis when it is configured so running
// servers hear about the change; otherwise they are dropped.
func NewBundle(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Bundle, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.MaxDBConnections})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &Bundle{DB: db, Redis: cache.Connect(ctx, cfg.Redis.URL, logger)}

	var publisher events.Publisher = events.NewHub()
	if b.Redis != nil {
		publisher = events.NewRedisBroker(b.Redis, cfg.Redis.Channel, logger)
	} else {
		logger.Debug("redis not configured, running servers will not be notified")
	}

	b.Identity = identity.NewService(identity.Dependencies{
		Users:    repository.NewBunUserRepository(db),
		Sessions: repository.NewBunSessionRepository(db),
		Tokens:   repository.NewBunOneTimeTokenRepository(db),
		Issuer:   auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL),
		Mailer:   NewMailer(cfg, logger),
		Events:   publisher,
		Logger:   logger,
	}, identity.Config{
		SiteURL:     cfg.SiteURL,
		RefreshTTL:  cfg.JWT.RefreshTTL,
		LinkTTL:     cfg.Mailer.LinkTTL,
		Autoconfirm: cfg.Mailer.Autoconfirm,
	})
	b.Profiles = profile.NewService(
		repository.NewBunProfileRepository(db),
		repository.NewBunAdminEmailRepository(db),
		publisher,
		logger,
	)
	return b, nil
}

// Load reads the configuration and builds a logger for subcommands that
// live outside the root package.
func Load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
