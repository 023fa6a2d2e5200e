package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Relay  RelayConfig  `mapstructure:"relay"`
	Notify NotifyConfig `mapstructure:"notify"`
}

// RelayConfig points at the relay host the session dials
type RelayConfig struct {
	Host         string `mapstructure:"host"`
	Insecure     bool   `mapstructure:"insecure"`
	PingInterval string `mapstructure:"ping_interval"`
}

// NotifyConfig configures the push-registration endpoint
type NotifyConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format: "text",
		Relay: RelayConfig{
			PingInterval: "10s",
		},
	}
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("conduit")
	v.SetConfigType("yaml")

	// Config paths, lowest precedence first.
	v.AddConfigPath("/etc/conduit/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "conduit"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".conduit")
	}
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("CONDUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.BindEnv("format", "CONDUIT_FORMAT")
	v.BindEnv("quiet", "CONDUIT_QUIET")
	v.BindEnv("verbose", "CONDUIT_VERBOSE")
	v.BindEnv("relay.host", "CONDUIT_RELAY_HOST")
	v.BindEnv("relay.insecure", "CONDUIT_RELAY_INSECURE")
	v.BindEnv("notify.endpoint", "CONDUIT_NOTIFY_ENDPOINT")

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("relay.ping_interval", cfg.Relay.PingInterval)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found; use defaults.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
