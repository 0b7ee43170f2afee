package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "TRACKFLOW"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabasePath       = "trackflow.db"
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
	defaultCookieName         = "trackflow_session"
	defaultSessionIssuer      = "tauth"
	defaultTimezone           = "UTC"
	defaultFollowUpWindowDays = 7
	defaultFollowUpLimit      = 5
	defaultActivityLimit      = 10
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	AllowedOrigins     []string
	DatabasePath       string
	LogLevel           string
	LogFormat          string
	TAuthSigningKey    string
	TAuthCookieName    string
	TAuthIssuer        string
	Timezone           string
	FollowUpWindowDays int
	FollowUpLimit      int
	ActivityLimit      int
	MetricsEnabled     bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("tauth.cookie_name", defaultCookieName)
	configViper.SetDefault("tauth.issuer", defaultSessionIssuer)
	configViper.SetDefault("dashboard.timezone", defaultTimezone)
	configViper.SetDefault("dashboard.follow_up_window_days", defaultFollowUpWindowDays)
	configViper.SetDefault("dashboard.follow_up_limit", defaultFollowUpLimit)
	configViper.SetDefault("dashboard.activity_limit", defaultActivityLimit)
	configViper.SetDefault("metrics.enabled", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		AllowedOrigins:     splitList(configViper.GetStringSlice("http.allowed_origins")),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		LogFormat:          strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		TAuthSigningKey:    configViper.GetString("tauth.signing_secret"),
		TAuthCookieName:    configViper.GetString("tauth.cookie_name"),
		TAuthIssuer:        configViper.GetString("tauth.issuer"),
		Timezone:           configViper.GetString("dashboard.timezone"),
		FollowUpWindowDays: configViper.GetInt("dashboard.follow_up_window_days"),
		FollowUpLimit:      configViper.GetInt("dashboard.follow_up_limit"),
		ActivityLimit:      configViper.GetInt("dashboard.activity_limit"),
		MetricsEnabled:     configViper.GetBool("metrics.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.TAuthSigningKey) == "" {
		return fmt.Errorf("tauth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.TAuthCookieName) == "" {
		return fmt.Errorf("tauth.cookie_name is required")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.LogFormat)
	}
	if c.ActivityLimit < 0 {
		return fmt.Errorf("dashboard.activity_limit must not be negative")
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated string,
// which is how list values arrive from the environment.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
