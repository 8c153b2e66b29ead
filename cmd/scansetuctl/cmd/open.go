package cmd

import (
	"github.com/spf13/cobra"

	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/config"
	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/pages"
	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/session"
	"github.com/scansetu/scansetu/pkg/guard"
)

func openPath(cmd *cobra.Command, path string) error {
	cfg := config.MustFromContext(cmd.Context())
	if _, err := guard.Lookup(path); err != nil {
		return err
	}
	sess, err := session.Open(cmd.Context(), cfg, session.Options{})
	if err != nil {
		return err
	}
	defer sess.Close()
	return pages.Show(cmd.Context(), sess, path)
}

var openCmd = &cobra.Command{
	Use:   "open [path]",
	Short: "Open a page (/, /student or /dashboard)",
	Long: `Opens a page the way the app would: the session is loaded first, then
pages you may not see redirect (to / when signed out, to /student when
not an admin).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := guard.AnonymousPath
		if len(args) == 1 {
			path = args[0]
		}
		return openPath(cmd, path)
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the admin dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return openPath(cmd, "/dashboard")
	},
}

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Open your issued items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return openPath(cmd, guard.NonAdminPath)
	},
}

func init() {
	rootCmd.AddCommand(openCmd, dashboardCmd, studentCmd)
}
