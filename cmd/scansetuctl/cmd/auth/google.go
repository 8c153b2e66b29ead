package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/pages"
)

var googleNoOpen bool

var googleCmd = &cobra.Command{
	Use:   "google",
	Short: "Sign in with Google in your browser",
	Long: `Opens the Google consent page in your browser and waits for it to return
to a local listener. Once signed in, the dashboard the flow returns to is
opened.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		spinner, _ := pterm.DefaultSpinner.Start("Waiting for Google sign-in in your browser...")
		if err := sess.Manager.SignInWithRedirect(cmd.Context(), "google"); err != nil {
			spinner.Fail(err.Error())
			return err
		}
		if _, err := awaitSignIn(cmd.Context(), sess, spinner); err != nil {
			return err
		}
		if googleNoOpen {
			return nil
		}
		if path, ok := sess.ReturnPath(); ok {
			return pages.Show(cmd.Context(), sess, path)
		}
		return nil
	},
}

func init() {
	googleCmd.Flags().BoolVar(&googleNoOpen, "no-open", false, "Do not open the dashboard after signing in")
}
