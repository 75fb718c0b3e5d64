package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "AGORA"
	defaultHTTPAddress  = "0.0.0.0:8000"
	defaultDatabasePath = "agora.db"
	defaultLogLevel     = "info"
	defaultTokenTTL     = 12 * time.Hour
)

// defaultMilestones is the threshold set at which vote notifications fire.
var defaultMilestones = []int{1, 5, 20, 50, 100, 200, 500, 1000, 100000, 10000000}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	LogLevel            string
	SessionSigningKey   string
	SessionTokenTTL     time.Duration
	MilestoneThresholds []int
	NotifySelf          bool
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
	configViper.SetDefault("session.token_ttl_minutes", int(defaultTokenTTL.Minutes()))
	configViper.SetDefault("notifications.milestones", defaultMilestones)
	configViper.SetDefault("notifications.notify_self", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabasePath:        configViper.GetString("database.path"),
		LogLevel:            configViper.GetString("log.level"),
		SessionSigningKey:   configViper.GetString("session.signing_secret"),
		SessionTokenTTL:     time.Duration(configViper.GetInt("session.token_ttl_minutes")) * time.Minute,
		MilestoneThresholds: configViper.GetIntSlice("notifications.milestones"),
		NotifySelf:          configViper.GetBool("notifications.notify_self"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.MilestoneThresholds) == 0 {
		return fmt.Errorf("notifications.milestones must not be empty")
	}
	return nil
}
