package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/config"
	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/session"
	"github.com/scansetu/scansetu/pkg/authctx"
)

const signInTimeout = 20 * time.Second

// AuthCmd is the parent command for auth operations
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Commands for signing in, signing up and checking the current session.`,
}

func init() {
	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(signupCmd)
	AuthCmd.AddCommand(magicLinkCmd)
	AuthCmd.AddCommand(verifyCmd)
	AuthCmd.AddCommand(googleCmd)
	AuthCmd.AddCommand(logoutCmd)
	AuthCmd.AddCommand(statusCmd)
}

func openSession(cmd *cobra.Command) (*config.GlobalConfig, *session.Session, error) {
	cfg := config.MustFromContext(cmd.Context())
	sess, err := session.Open(cmd.Context(), cfg, session.Options{})
	if err != nil {
		return nil, nil, err
	}
	return cfg, sess, nil
}

// prompt returns value, or asks for it when empty and prompts are allowed.
func prompt(cfg *config.GlobalConfig, value, label, flag string, secret bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if cfg.NonInteractive {
		return "", fmt.Errorf("--%s is required in non-interactive mode", flag)
	}
	input := pterm.DefaultInteractiveTextInput
	if secret {
		input = *input.WithMask("*")
	}
	v, err := input.Show(label)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s is required", flag)
	}
	return v, nil
}

// awaitSignIn waits for the Manager to settle on a signed-in state and
// reports who it is.
func awaitSignIn(ctx context.Context, sess *session.Session, spinner *pterm.SpinnerPrinter) (authctx.State, error) {
	// Wait for the user just stored, not a session loaded at startup.
	userID := ""
	if creds, err := sess.Auth.Credentials(); err == nil {
		userID = creds.User.ID
	}
	waitCtx, cancel := context.WithTimeout(ctx, signInTimeout)
	defer cancel()
	state, err := sess.WaitFor(waitCtx, session.SignedIn(userID))
	if err != nil {
		spinner.Fail("Signed in, but the session did not load")
		return state, err
	}
	spinner.Success(fmt.Sprintf("Signed in as %s", state.Session.User.Email))
	printRole(state)
	return state, nil
}

func printRole(state authctx.State) {
	switch {
	case state.Profile == nil:
		pterm.Warning.Println("Profile not available yet; treating you as a student.")
	case state.Profile.IsAdmin():
		pterm.Info.Println("Role: admin (scansetuctl dashboard)")
	default:
		pterm.Info.Printf("Role: %s (scansetuctl student)\n", state.Profile.Role)
	}
}
