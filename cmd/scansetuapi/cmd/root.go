package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/cmd/admins"
	"github.com/scansetu/scansetu/cmd/scansetuapi/cmd/cmdutil"
	"github.com/scansetu/scansetu/cmd/scansetuapi/cmd/users"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/config"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "scansetuapi",
	Short: "ScanSetu API server",
	Long: `ScanSetu API server hosts sign-in, profiles and the inventory read
endpoints used by the scansetuctl terminal client.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err = cmdutil.NewLogger(cfg.Debug)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: SCANSETU_DATABASE_URL)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: SCANSETU_DEBUG)")
	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("db-url"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(admins.AdminsCmd)
	rootCmd.AddCommand(users.UsersCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
