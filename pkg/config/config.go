package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "VOCADRILL_"

type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver" validate:"oneof=sqlite postgres"`
	Path     string `koanf:"path"`
	Host     string `koanf:"host"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	Port     int    `koanf:"port" validate:"min=0,max=65535"`
	SSLMode  string `koanf:"sslmode"`
}

type SyncConfig struct {
	BaseURL        string `koanf:"base_url" validate:"omitempty,url"`
	TimeoutSeconds int    `koanf:"timeout_seconds" validate:"min=0"`
}

type LoggingConfig struct {
	Level     string `koanf:"level"`
	File      string `koanf:"file"`
	GormLevel string `koanf:"gorm_level"`
}

var AppConfig Config

// Load merges configuration from a YAML file, VOCADRILL_* environment
// variables and (optionally) command-line flags, in that order of
// precedence. Nested keys use "__" in the environment, e.g.
// VOCADRILL_SYNC__BASE_URL.
func Load(path string, flags *pflag.FlagSet) error {
	k := koanf.New(".")

	// Defaults are seeded into the koanf tree so that unchanged flags
	// (whose empty defaults posflag would otherwise apply) never shadow
	// them.
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if strings.TrimSpace(path) != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	AppConfig = cfg
	return nil
}

func defaults() map[string]any {
	return map[string]any{
		"database.driver":      "sqlite",
		"database.path":        "vocadrill.db",
		"database.sslmode":     "disable",
		"sync.timeout_seconds": 15,
		"logging.level":        "info",
		"logging.gorm_level":   "warn",
	}
}
