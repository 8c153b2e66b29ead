// Package users holds account maintenance commands run against the
// database directly.
package users

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scansetu/scansetu/cmd/scansetuapi/cmd/cmdutil"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
)

// UsersCmd is the parent command for user management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
	Long:  `Commands for confirming, disabling and signing out accounts directly from the server.`,
}

func withIdentity(cmd *cobra.Command, fn func(ctx context.Context, svc *identity.Service) error) error {
	cfg, logger, err := cmdutil.Load()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	bundle, err := cmdutil.NewBundle(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer bundle.Close()
	return fn(ctx, bundle.Identity)
}

var confirmCmd = &cobra.Command{
	Use:   "confirm [email]",
	Short: "Mark an account's email as confirmed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdentity(cmd, func(ctx context.Context, svc *identity.Service) error {
			user, err := svc.ConfirmUser(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to confirm user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Confirmed %s (%s)\n", user.Email, user.ID)
			return nil
		})
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable [email]",
	Short: "Disable an account and end its sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdentity(cmd, func(ctx context.Context, svc *identity.Service) error {
			user, err := svc.SetDisabled(ctx, args[0], true)
			if err != nil {
				return fmt.Errorf("failed to disable user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Disabled %s\n", user.Email)
			return nil
		})
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable [email]",
	Short: "Re-enable a disabled account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdentity(cmd, func(ctx context.Context, svc *identity.Service) error {
			user, err := svc.SetDisabled(ctx, args[0], false)
			if err != nil {
				return fmt.Errorf("failed to enable user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enabled %s\n", user.Email)
			return nil
		})
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke [email]",
	Short: "Sign an account out of every session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdentity(cmd, func(ctx context.Context, svc *identity.Service) error {
			n, err := svc.RevokeSessions(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to revoke sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d session(s)\n", n)
			return nil
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired sessions and link tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIdentity(cmd, func(ctx context.Context, svc *identity.Service) error {
			sessions, tokens, err := svc.CleanupExpired(ctx)
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s) and %d token(s)\n", sessions, tokens)
			return nil
		})
	},
}

func init() {
	UsersCmd.AddCommand(confirmCmd, disableCmd, enableCmd, revokeCmd, cleanupCmd)
}
