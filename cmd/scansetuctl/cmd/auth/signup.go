package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	signupEmail    string
	signupPassword string
	signupName     string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		email, err := prompt(cfg, signupEmail, "Email", "email", false)
		if err != nil {
			return err
		}
		password, err := prompt(cfg, signupPassword, "Password", "password", true)
		if err != nil {
			return err
		}

		spinner, _ := pterm.DefaultSpinner.Start("Creating account...")
		outcome, err := sess.Manager.SignUpWithCredentials(cmd.Context(), email, password, signupName)
		if err != nil {
			spinner.Fail(err.Error())
			return err
		}
		if outcome.NeedsVerification {
			spinner.Success("Account created")
			pterm.Info.Println("Check your inbox to verify your email, then sign in.")
			return nil
		}
		_, err = awaitSignIn(cmd.Context(), sess, spinner)
		return err
	},
}

func init() {
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Account email")
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "Account password (prompted when omitted)")
	signupCmd.Flags().StringVar(&signupName, "name", "", "Full name shown on your profile")
}
