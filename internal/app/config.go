package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment variables read by LoadConfig, e.g.
// MEMBERSDK_BASE_URL overrides base_url.
const envPrefix = "MEMBERSDK_"

type Config struct {
	BaseURL        string `koanf:"base_url"`
	ConsumerKey    string `koanf:"consumer_key"`
	ConsumerSecret string `koanf:"consumer_secret"`

	DatabaseFile string `koanf:"database_file"`
	VaultFile    string `koanf:"vault_file"`
	DeviceKey    string `koanf:"device_key"`

	Env       string `koanf:"env"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaults() Config {
	return Config{
		DatabaseFile: "membersdk.db",
		VaultFile:    "membersdk.vault",
		DeviceKey:    "membersdk.key",
		Env:          "prod",
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

// LoadConfig merges, in increasing priority: built-in defaults, the YAML
// file at path (skipped when path is empty or absent), and MEMBERSDK_*
// environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := defaults()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.BaseURL == "" {
		return cfg, fmt.Errorf("base_url is required (set %sBASE_URL or the config file)", envPrefix)
	}

	return cfg, nil
}
