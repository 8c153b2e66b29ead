package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvServerURL:      "https://api.scansetu.example/",
		EnvNonInteractive: "true",
	}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		name          string
		serverFlagSet bool
		wantURL       string
	}{
		{name: "env overrides default", wantURL: "https://api.scansetu.example"},
		{name: "explicit flag wins", serverFlagSet: true, wantURL: "http://localhost:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &GlobalConfig{ServerURL: "http://localhost:9000"}
			cfg.ApplyEnv(tt.serverFlagSet, getenv)
			assert.Equal(t, tt.wantURL, cfg.ServerURL)
			assert.True(t, cfg.NonInteractive)
		})
	}
}

func TestApplyEnv_Unset(t *testing.T) {
	cfg := &GlobalConfig{ServerURL: "http://localhost:8080"}
	cfg.ApplyEnv(false, func(string) string { return "" })
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.False(t, cfg.NonInteractive)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { MustFromContext(context.Background()) })

	want := &GlobalConfig{ServerURL: "http://localhost:8080", Debug: true}
	ctx := InjectConfig(context.Background(), want)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, want, got)
	assert.Same(t, want, MustFromContext(ctx))
}
