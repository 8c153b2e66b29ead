package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/scansetu/scansetu/cmd/scansetuctl/cmd/auth"
	"github.com/scansetu/scansetu/cmd/scansetuctl/internal/config"
)

const defaultServerURL = "http://localhost:8080"

var (
	serverURL      string
	nonInteractive bool
	debug          bool
)

var rootCmd = &cobra.Command{
	Use:   "scansetuctl",
	Short: "ScanSetu CLI - barcode inventory for labs and workshops",
	Long: `scansetuctl is the terminal client for ScanSetu. Use it to sign in and to
open the landing page, your items, or the admin dashboard.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := &config.GlobalConfig{
			ServerURL:      serverURL,
			NonInteractive: nonInteractive,
			Debug:          debug,
		}
		cfg.ApplyEnv(cmd.Flags().Changed("server"), os.Getenv)
		cmd.SetContext(config.InjectConfig(cmd.Context(), cfg))
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, "ScanSetu API server URL (env: SCANSETU_SERVER_URL)")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Disable interactive prompts (also set via SCANSETU_NON_INTERACTIVE=1)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log session activity to stderr")
	rootCmd.AddCommand(auth.AuthCmd)
}
