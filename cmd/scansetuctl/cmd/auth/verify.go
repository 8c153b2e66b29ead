package auth

import (
	"net/url"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	verifyToken string
	verifyType  string
)

// parseToken accepts either the raw token or the whole emailed link.
func parseToken(raw, kind string) (string, string) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw, kind
	}
	q := u.Query()
	token := q.Get("token")
	if token == "" {
		return raw, kind
	}
	if t := q.Get("type"); t != "" {
		kind = t
	}
	return token, kind
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Sign in with an emailed magic link or confirmation link",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, sess, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Close()

		raw, err := prompt(cfg, verifyToken, "Link or token", "token", false)
		if err != nil {
			return err
		}
		token, kind := parseToken(raw, verifyType)

		spinner, _ := pterm.DefaultSpinner.Start("Verifying...")
		if err := sess.Auth.VerifyOTP(cmd.Context(), kind, token); err != nil {
			spinner.Fail(err.Error())
			return err
		}
		_, err = awaitSignIn(cmd.Context(), sess, spinner)
		return err
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyToken, "token", "", "Token or full link from the email")
	verifyCmd.Flags().StringVar(&verifyType, "type", "magiclink", "Link type when passing a bare token (magiclink or signup)")
}
