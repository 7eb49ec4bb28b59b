package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultUserAgent is sent on every outbound request unless overridden.
const DefaultUserAgent = "wcag-scrapper/1.0"

// Config holds the application configuration loaded from files, environment
// variables and command-line flags.
type Config struct {
	AppName      string `mapstructure:"app_name"`
	Env          string `mapstructure:"app_env"`
	LogLevel     string `mapstructure:"log_level"`
	UserAgent    string `mapstructure:"user_agent"`
	CABundleFile string `mapstructure:"ca_bundle_file"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

// Load reads configuration from environment variables and the optional .env file.
// Flags, when given, override both; flag names use dashes for the key's underscores.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "wcag-scrapper")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("ca_bundle_file", "")
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{"log_level", "user_agent", "ca_bundle_file", "metrics_addr"} {
			flag := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.UserAgent = strings.TrimSpace(cfg.UserAgent)
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("invalid user_agent (must not be empty)")
	}
	cfg.CABundleFile = strings.TrimSpace(cfg.CABundleFile)
	cfg.MetricsAddr = strings.TrimSpace(cfg.MetricsAddr)

	return &cfg, nil
}
