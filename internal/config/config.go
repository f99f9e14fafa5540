package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Plaid    PlaidConfig
	Icons    IconsConfig
	Search   SearchConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// PlaidConfig holds aggregation source settings. Credentials live in the
// secrets store, not here.
type PlaidConfig struct {
	Environment string
}

// IconsConfig holds the icon cache location.
type IconsConfig struct {
	Dir string
}

// SearchConfig holds relevance-ranking weights for the full-text columns.
type SearchConfig struct {
	TextWeight     float64 `mapstructure:"text_weight"`
	MerchantWeight float64 `mapstructure:"merchant_weight"`
}

// Load reads configuration from file and env. Env var overrides use prefix TXNQL_.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "txnql", "txnql.db"))
	v.SetDefault("plaid.environment", "sandbox")
	v.SetDefault("icons.dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "txnql", "icons"))
	v.SetDefault("search.text_weight", 1.0)
	v.SetDefault("search.merchant_weight", 1.5)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("TXNQL_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "txnql"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TXNQL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("TXNQL_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "txnql", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("plaid.environment", cfg.Plaid.Environment)
	v.Set("icons.dir", cfg.Icons.Dir)
	v.Set("search.text_weight", cfg.Search.TextWeight)
	v.Set("search.merchant_weight", cfg.Search.MerchantWeight)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
