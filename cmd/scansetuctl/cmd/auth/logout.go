package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/config"
	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/session"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove local credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		sess, err := session.New(cfg, session.Options{})
		if err != nil {
			return err
		}
		defer sess.Close()

		// Local credentials are removed whatever the server says.
		sess.Manager.SignOut(cmd.Context())
		pterm.Success.Println("Signed out")
		return nil
	},
}
