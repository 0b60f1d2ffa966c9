// Package config loads settings from a YAML file, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STUDYDECK_"

// Config holds all runtime settings.
type Config struct {
	DB          string   `koanf:"db" validate:"required"`
	Addr        string   `koanf:"addr" validate:"required"`
	LogLevel    string   `koanf:"log-level" validate:"oneof=debug info warn error"`
	MaxUploadMB int      `koanf:"max-upload-mb" validate:"min=1,max=512"`
	ReposDir    string   `koanf:"repos-dir" validate:"required"`
	Sources     []string `koanf:"sources" validate:"dive,required"`
	CORSOrigins []string `koanf:"cors-origins" validate:"dive,required"`
	StarterDeck bool     `koanf:"starter-deck"`
}

// RegisterFlags adds the configuration flags, with their defaults, to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", DefaultConfigPath(), "Path to the YAML config file")
	flags.String("db", DefaultDBPath(), "Path to the SQLite database file")
	flags.String("addr", ":4000", "HTTP listen address")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Int("max-upload-mb", 32, "Largest accepted upload in megabytes")
	flags.String("repos-dir", filepath.Join(dataHome(), "studydeck", "repos"), "Directory for git source checkouts")
	flags.StringSlice("sources", nil, "Local directories or git URLs to sync")
	flags.StringSlice("cors-origins", []string{"*"}, "Origins allowed to call the HTTP API")
	flags.Bool("starter-deck", true, "Give an empty store the finite automata starter deck")
}

// Load builds the configuration. A missing config file is not an error.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// Values already in the environment win over the .env file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger installs and returns a text logger on stderr at the given level.
func Logger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}

// DefaultConfigPath returns the default YAML config path.
func DefaultConfigPath() string {
	return filepath.Join(configHome(), "studydeck", "config.yaml")
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(dataHome(), "studydeck", "studydeck.db")
}

func configHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

func dataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}
