package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		email, err := prompt(cfg, loginEmail, "Email", "email", false)
		if err != nil {
			return err
		}
		password, err := prompt(cfg, loginPassword, "Password", "password", true)
		if err != nil {
			return err
		}

		spinner, _ := pterm.DefaultSpinner.Start("Signing in...")
		if err := sess.Manager.SignInWithCredentials(cmd.Context(), email, password); err != nil {
			spinner.Fail(err.Error())
			return err
		}
		_, err = awaitSignIn(cmd.Context(), sess, spinner)
		return err
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted when omitted)")
}
