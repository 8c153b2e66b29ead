package config

import (
	"context"
	"os"
	"strings"
)

// Environment overrides for the persistent flags.
const (
	EnvServerURL      = "SCANSETU_SERVER_URL"
	EnvNonInteractive = "SCANSETU_NON_INTERACTIVE"
)

type ctxKey struct{}

// GlobalConfig is what every scansetuctl command sees after the root command
// has resolved flags and environment.
type GlobalConfig struct {
	ServerURL      string
	NonInteractive bool
	Debug          bool
}

// ApplyEnv fills in values from the environment. serverFlagSet reports
// whether --server was given explicitly, in which case it wins.
func (c *GlobalConfig) ApplyEnv(serverFlagSet bool, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if !serverFlagSet {
		if v := getenv(EnvServerURL); v != "" {
			c.ServerURL = v
		}
	}
	switch strings.ToLower(getenv(EnvNonInteractive)) {
	case "1", "true", "yes":
		c.NonInteractive = true
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
}

func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(ctxKey{}).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext panics when the root command's PersistentPreRun did not
// run, which only happens if a command is executed outside rootCmd.
func MustFromContext(ctx context.Context) *GlobalConfig {
	if cfg, ok := FromContext(ctx); ok {
		return cfg
	}
	panic("scansetuctl: no GlobalConfig in command context")
}
