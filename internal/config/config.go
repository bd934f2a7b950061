package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "HDNOTES"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "hdnotes.db"
	defaultLogLevel     = "info"
	defaultJWKSURL      = "https://www.googleapis.com/oauth2/v3/certs"
	defaultCORSOrigin   = "http://localhost:8080"
	defaultSMTPPort     = 587
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	LogLevel       string
	SigningSecret  string
	GoogleClientID string
	GoogleJWKSURL  string
	CORSOrigin     string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("google.jwks_url", defaultJWKSURL)
	configViper.SetDefault("cors.origin", defaultCORSOrigin)
	configViper.SetDefault("smtp.port", defaultSMTPPort)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		GoogleClientID: configViper.GetString("google.client_id"),
		GoogleJWKSURL:  configViper.GetString("google.jwks_url"),
		CORSOrigin:     configViper.GetString("cors.origin"),
		SMTPHost:       configViper.GetString("smtp.host"),
		SMTPPort:       configViper.GetInt("smtp.port"),
		SMTPUsername:   configViper.GetString("smtp.username"),
		SMTPPassword:   configViper.GetString("smtp.password"),
		SMTPFrom:       configViper.GetString("smtp.from"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	// missing secret is fatal at startup, never a request-time error
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
