package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "COMPASS"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabaseDrv   = "sqlite"
	defaultDatabasePath  = "compass.db"
	defaultLogLevel      = "info"
	defaultTokenTTLMin   = 30
	defaultDeadlineHours = 24
	defaultUrgentMinutes = 120
	defaultLLMBaseURL    = "https://api.openai.com/v1"
	defaultLLMModel      = "gpt-4o-mini"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabaseDriver  string
	DatabasePath    string
	DatabaseDSN     string
	LogLevel        string
	SigningSecret   string
	TokenTTL        time.Duration
	SSOAudience     string
	SSOJWKSURL      string
	SSOIssuers      []string
	LLMBaseURL      string
	LLMModel        string
	LLMAPIKey       string
	DeadlineWindow  time.Duration
	UrgentThreshold time.Duration
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
	configViper.SetDefault("database.driver", defaultDatabaseDrv)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMin)
	configViper.SetDefault("sso.issuers", []string{})
	configViper.SetDefault("llm.base_url", defaultLLMBaseURL)
	configViper.SetDefault("llm.model", defaultLLMModel)
	configViper.SetDefault("tasks.deadline_hours", defaultDeadlineHours)
	configViper.SetDefault("tasks.urgent_threshold_minutes", defaultUrgentMinutes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:    configViper.GetString("database.path"),
		DatabaseDSN:     configViper.GetString("database.dsn"),
		LogLevel:        configViper.GetString("log.level"),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		TokenTTL:        time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		SSOAudience:     configViper.GetString("sso.audience"),
		SSOJWKSURL:      configViper.GetString("sso.jwks_url"),
		SSOIssuers:      configViper.GetStringSlice("sso.issuers"),
		LLMBaseURL:      configViper.GetString("llm.base_url"),
		LLMModel:        configViper.GetString("llm.model"),
		LLMAPIKey:       configViper.GetString("llm.api_key"),
		DeadlineWindow:  time.Duration(configViper.GetInt("tasks.deadline_hours")) * time.Hour,
		UrgentThreshold: time.Duration(configViper.GetInt("tasks.urgent_threshold_minutes")) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.DeadlineWindow <= 0 {
		return fmt.Errorf("tasks.deadline_hours must be positive")
	}
	if c.UrgentThreshold <= 0 {
		return fmt.Errorf("tasks.urgent_threshold_minutes must be positive")
	}
	return nil
}
