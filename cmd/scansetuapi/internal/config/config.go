package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by the server.
const EnvPrefix = "SCANSETU"

// Config holds the application configuration
type Config struct {
	// Database connection string (postgres:// or file:/sqlite path)
	DatabaseURL string `mapstructure:"database_url"`

	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Public base URL; verification links and OAuth returns are built from it
	SiteURL string `mapstructure:"site_url"`

	MaxDBConnections int  `mapstructure:"max_db_connections"`
	Debug            bool `mapstructure:"debug"`

	CORSOrigins []string `mapstructure:"cors_origins"`

	// Emails seeded into the admin allow-list at startup
	AdminEmails []string `mapstructure:"admin_emails"`

	JWT       JWTConfig       `mapstructure:"jwt"`
	Mailer    MailerConfig    `mapstructure:"mailer"`
	Google    GoogleConfig    `mapstructure:"google"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// JWTConfig controls access and refresh token lifetimes.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// MailerConfig controls confirmation and magic-link delivery.
// With no SendGrid key the links are written to the log instead.
type MailerConfig struct {
	Autoconfirm    bool          `mapstructure:"autoconfirm"`
	FromEmail      string        `mapstructure:"from_email"`
	FromName       string        `mapstructure:"from_name"`
	SendGridAPIKey string        `mapstructure:"sendgrid_api_key"`
	LinkTTL        time.Duration `mapstructure:"link_ttl"`
}

// GoogleConfig enables the Google sign-in provider when ClientID is set.
type GoogleConfig struct {
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != ""
}

// RedisConfig is optional; without a URL the cache is bypassed and events
// stay in-process.
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Channel  string        `mapstructure:"channel"`
}

// TelemetryConfig configures OpenTelemetry export. An empty endpoint keeps
// tracing local.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "file:scansetu.db")
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("site_url", "http://localhost:8080")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("debug", false)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("admin_emails", []string{})

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_ttl", time.Hour)
	v.SetDefault("jwt.refresh_ttl", 30*24*time.Hour)

	v.SetDefault("mailer.autoconfirm", false)
	v.SetDefault("mailer.from_email", "noreply@scansetu.local")
	v.SetDefault("mailer.from_name", "ScanSetu")
	v.SetDefault("mailer.sendgrid_api_key", "")
	v.SetDefault("mailer.link_ttl", time.Hour)

	v.SetDefault("google.issuer", "https://accounts.google.com")
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_uri", "")
	v.SetDefault("google.scopes", []string{"openid", "profile", "email"})

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.cache_ttl", 30*time.Second)
	v.SetDefault("redis.channel", "scansetu:auth-events")

	v.SetDefault("telemetry.service_name", "scansetuapi")
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// LoadDotEnv loads a .env file into the process environment if it exists.
// Variables already set win over the file.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from the global viper instance (config file set
// by the caller) and SCANSETU_ prefixed environment variables, then
// validates it.
func Load() (*Config, error) {
	v := viper.GetViper()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s_DATABASE_URL is required", EnvPrefix)
	}
	if c.SiteURL == "" {
		return fmt.Errorf("%s_SITE_URL is required", EnvPrefix)
	}
	if _, err := url.ParseRequestURI(c.SiteURL); err != nil {
		return fmt.Errorf("%s_SITE_URL is not a valid URL: %w", EnvPrefix, err)
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")

	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("%s_JWT_SECRET must be at least 32 characters", EnvPrefix)
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Mailer.LinkTTL <= 0 {
		return fmt.Errorf("%s_MAILER_LINK_TTL must be positive", EnvPrefix)
	}

	if c.Google.Enabled() {
		if c.Google.ClientSecret == "" {
			return fmt.Errorf("%s_GOOGLE_CLIENT_SECRET is required when Google sign-in is enabled", EnvPrefix)
		}
		if c.Google.RedirectURI == "" {
			c.Google.RedirectURI = c.SiteURL + "/auth/v1/callback"
		}
	}

	admins := c.AdminEmails[:0]
	for _, email := range c.AdminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			admins = append(admins, email)
		}
	}
	c.AdminEmails = admins
	return nil
}
