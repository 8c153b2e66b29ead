// Package admins manages the email allow-list that grants the admin role.
package admins

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scansetu/scansetu/cmd/scansetuapi/cmd/cmdutil"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/profile"
)

// AdminsCmd is the parent command for admin allow-list operations
var AdminsCmd = &cobra.Command{
	Use:   "admins",
	Short: "Manage the admin allow-list",
	Long: `Commands for granting and revoking the admin role by email. Existing
profiles with a matching email are re-evaluated immediately.`,
}

func withProfiles(cmd *cobra.Command, fn func(ctx context.Context, svc *profile.Service) error) error {
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
	return fn(ctx, bundle.Profiles)
}

var addCmd = &cobra.Command{
	Use:   "add [email]",
	Short: "Grant the admin role to an email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(cmd, func(ctx context.Context, svc *profile.Service) error {
			if err := svc.AddAdmin(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to add admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to the admin allow-list\n", args[0])
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [email]",
	Short: "Revoke the admin role from an email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(cmd, func(ctx context.Context, svc *profile.Service) error {
			if err := svc.RemoveAdmin(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to remove admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the admin allow-list\n", args[0])
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List admin emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(cmd, func(ctx context.Context, svc *profile.Service) error {
			admins, err := svc.ListAdmins(ctx)
			if err != nil {
				return fmt.Errorf("failed to list admins: %w", err)
			}
			if len(admins) == 0 {
				fmt.Fprintln(os.Stdout, "No admin emails configured")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tADDED_AT")
			for _, a := range admins {
				fmt.Fprintf(w, "%s\t%s\n", a.Email, a.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

func init() {
	AdminsCmd.AddCommand(addCmd, removeCmd, listCmd)
}
