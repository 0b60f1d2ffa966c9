package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return flags
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	flags := newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Addr != ":4000" {
		t.Errorf("Expected default addr :4000, but got %q", cfg.Addr)
	}
	if cfg.MaxUploadMB != 32 {
		t.Errorf("Expected default upload limit 32, but got %d", cfg.MaxUploadMB)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("Expected default CORS origins [*], but got %v", cfg.CORSOrigins)
	}
	if !cfg.StarterDeck {
		t.Error("Expected the starter deck to be enabled by default")
	}
}

func TestLoadStarterDeckFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STUDYDECK_STARTER_DECK", "false")

	cfg, err := Load(newFlags(t, "--config", ""))
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.StarterDeck {
		t.Error("Expected the environment to disable the starter deck")
	}
}

func TestLoadPrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":5000\"\nlog-level: debug\nmax-upload-mb: 8\nsources:\n  - /notes\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("STUDYDECK_MAX_UPLOAD_MB", "16")

	flags := newFlags(t, "--config", path, "--log-level", "warn")
	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	if cfg.Addr != ":5000" {
		t.Errorf("Expected addr from file, but got %q", cfg.Addr)
	}
	if cfg.MaxUploadMB != 16 {
		t.Errorf("Expected environment to override file, but got %d", cfg.MaxUploadMB)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected flag to override file, but got %q", cfg.LogLevel)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0] != "/notes" {
		t.Errorf("Expected sources from file, but got %v", cfg.Sources)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STUDYDECK_ADDR=:6000\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("STUDYDECK_ADDR") })

	cfg, err := Load(newFlags(t, "--config", ""))
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Addr != ":6000" {
		t.Errorf("Expected addr from .env, but got %q", cfg.Addr)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{DB: "db", Addr: ":4000", LogLevel: "info", MaxUploadMB: 32, ReposDir: "repos"}

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing db", func(c *Config) { c.DB = "" }, true},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"zero upload limit", func(c *Config) { c.MaxUploadMB = 0 }, true},
		{"empty source", func(c *Config) { c.Sources = []string{""} }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := Validate(&cfg)
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	logger := Logger("debug")
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("Expected debug logging to be enabled")
	}
	if Logger("bogus").Enabled(t.Context(), slog.LevelDebug) {
		t.Error("Expected an unknown level to fall back to info")
	}
}
