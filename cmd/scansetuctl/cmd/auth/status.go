package auth

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), signInTimeout)
		defer cancel()
		state, err := sess.Manager.WaitReady(ctx)
		if err != nil {
			return err
		}

		pterm.DefaultSection.Println("Authentication Status")
		pterm.Info.Printf("Server: %s\n", cfg.ServerURL)
		if state.Session == nil {
			pterm.Warning.Println("Not signed in")
			return nil
		}

		user := state.Session.User
		pterm.Info.Printf("User: %s (%s)\n", user.Email, user.ID)
		pterm.Info.Printf("Token expires: %s\n", state.Session.ExpiresAt.Local().Format(time.RFC1123))
		if state.Profile != nil && state.Profile.FullName != "" {
			pterm.Info.Printf("Name: %s\n", state.Profile.FullName)
		}
		printRole(state)
		return nil
	},
}
