package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/cmd/cmdutil"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/cache"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/bunx"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/events"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/middleware"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/migrations"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/server"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/inventory"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/profile"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/telemetry"
)

var (
	serveMigrate    bool
	cleanupInterval time.Duration
)

// observableBroker is satisfied by both the in-process Hub and the Redis
// broker, which embeds one.
type observableBroker interface {
	events.Broker
	Observe(fn func(events.Event))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ScanSetu API server",
	Long:  `Starts the HTTP server hosting the auth, profile, inventory and event stream endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				log.Printf("Warning: %v", err)
			}
		}()

		db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.MaxDBConnections})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		if serveMigrate {
			group, err := migrations.Up(ctx, db)
			if err != nil {
				return err
			}
			if group.ID != 0 {
				log.Printf("Applied migration group %d", group.ID)
			}
		}

		redisClient := cache.Connect(ctx, cfg.Redis.URL, logger)
		if redisClient != nil {
			defer redisClient.Close()
		}

		var broker observableBroker = events.NewHub()
		if redisClient != nil {
			rb := events.NewRedisBroker(redisClient, cfg.Redis.Channel, logger)
			go func() {
				if err := rb.Run(ctx); err != nil {
					logger.Error("event relay stopped", zap.Error(err))
				}
			}()
			broker = rb
		}

		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("failed to create server metrics: %w", err)
		}
		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("failed to create auth metrics: %w", err)
		}

		identitySvc := identity.NewService(identity.Dependencies{
			Users:    repository.NewBunUserRepository(db),
			Sessions: repository.NewBunSessionRepository(db),
			Tokens:   repository.NewBunOneTimeTokenRepository(db),
			Issuer:   auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL),
			Mailer:   cmdutil.NewMailer(cfg, logger),
			Events:   broker,
			Metrics:  authMetrics,
			Logger:   logger,
		}, identity.Config{
			SiteURL:     cfg.SiteURL,
			RefreshTTL:  cfg.JWT.RefreshTTL,
			LinkTTL:     cfg.Mailer.LinkTTL,
			Autoconfirm: cfg.Mailer.Autoconfirm,
		})
		profileSvc := profile.NewService(
			repository.NewBunProfileRepository(db),
			repository.NewBunAdminEmailRepository(db),
			broker,
			logger,
		)
		if err := profileSvc.SeedAdmins(ctx, cfg.AdminEmails); err != nil {
			return fmt.Errorf("failed to seed admin emails: %w", err)
		}
		inventorySvc := inventory.NewService(
			repository.NewBunInventoryRepository(db),
			cache.NewRedis(redisClient, cfg.Redis.CacheTTL, logger),
			logger,
		)

		authn, err := middleware.NewAuthn(middleware.AuthnDependencies{
			Authenticator: identitySvc,
			Roles:         profileSvc,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		// Role changes made by another instance or the admin CLI arrive here.
		broker.Observe(func(ev events.Event) {
			if ev.Kind == events.KindUserUpdated {
				authn.InvalidateRole(ev.UserID)
			}
		})

		enforcer, err := auth.InitEnforcer()
		if err != nil {
			return fmt.Errorf("failed to initialize casbin enforcer: %w", err)
		}
		authz, err := middleware.NewAuthz(enforcer, logger)
		if err != nil {
			return err
		}

		var relyingParty *auth.RelyingParty
		if cfg.Google.Enabled() {
			relyingParty, err = auth.NewRelyingParty(ctx, cfg.Google, strings.HasPrefix(cfg.SiteURL, "https://"))
			if err != nil {
				return fmt.Errorf("failed to initialize google sign-in: %w", err)
			}
			log.Printf("Google sign-in enabled (issuer %s)", cfg.Google.Issuer)
		}

		corsOptions := server.DefaultCORSOptions(cfg.CORSOrigins)
		router, err := server.NewRouter(server.RouterOptions{
			Identity:     identitySvc,
			Profiles:     profileSvc,
			Inventory:    inventorySvc,
			Broker:       broker,
			Authn:        authn,
			Authz:        authz,
			RelyingParty: relyingParty,
			SiteURL:      cfg.SiteURL,
			CORSOptions:  &corsOptions,
			Metrics:      serverMetrics,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("failed to build router: %w", err)
		}

		go runCleanup(ctx, identitySvc, cleanupInterval)

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting ScanSetu API server on %s", cfg.ServerAddr)
			log.Printf("Site URL: %s", cfg.SiteURL)
			serverErrors <- srv.ListenAndServe()
		}()

		// SIGHUP drops cached inventory counts; SIGINT and SIGTERM stop the server.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case sig := <-shutdown:
				if sig == syscall.SIGHUP {
					if err := inventorySvc.InvalidateStats(ctx); err != nil {
						log.Printf("Warning: failed to clear inventory cache: %v", err)
					} else {
						log.Printf("Inventory cache cleared")
					}
					continue
				}

				log.Printf("Received signal %v, starting graceful shutdown", sig)
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					_ = srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}
				log.Printf("Server stopped gracefully")
				return nil
			}
		}
	},
}

// runCleanup removes expired sessions and one-time tokens until ctx ends.
func runCleanup(ctx context.Context, svc *identity.Service, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := svc.CleanupExpired(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("expired row cleanup failed", zap.Error(err))
			}
		}
	}
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending migrations before serving")
	serveCmd.Flags().DurationVar(&cleanupInterval, "cleanup-interval", time.Hour, "How often expired sessions and link tokens are removed (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
