package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var magicLinkEmail string

var magicLinkCmd = &cobra.Command{
	Use:   "magic-link",
	Short: "Email a one-time sign-in link",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		email, err := prompt(cfg, magicLinkEmail, "Email", "email", false)
		if err != nil {
			return err
		}

		spinner, _ := pterm.DefaultSpinner.Start("Sending link...")
		if err := sess.Manager.SendMagicLink(cmd.Context(), email); err != nil {
			spinner.Fail(err.Error())
			return err
		}
		spinner.Success("Magic link sent. Check your email on this device.")
		pterm.Info.Println("Paste the link into `scansetuctl auth verify --token <link>` to sign in here.")
		return nil
	},
}

func init() {
	magicLinkCmd.Flags().StringVar(&magicLinkEmail, "email", "", "Account email")
}
