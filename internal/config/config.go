// Package config loads daemon and CLI settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

type DB struct {
	// Driver selects the storage engine: "memory" (JSON snapshots under
	// DataDir) or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the sqlite database file. Ignored for the memory driver.
	Path string `yaml:"path"`
}

type Config struct {
	HTTPPort  int             `yaml:"http_port"`
	DataDir   string          `yaml:"data_dir"`
	AuthToken string          `yaml:"auth_token"`
	TLS       bool            `yaml:"tls"`
	DB        DB              `yaml:"db"`
	Locales   []schema.Locale `yaml:"locales"`
	LogLevel  string          `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		HTTPPort: 8560,
		DataDir:  defaultDataDir(),
		DB:       DB{Driver: "memory"},
		Locales: []schema.Locale{
			{ID: 1, Code: "en"},
			{ID: 2, Code: "de"},
			{ID: 3, Code: "fr"},
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path, falling back to defaults when the file
// does not exist, then applies REFBASE_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults apply
	default:
		return Config{}, err
	}

	applyEnv(&cfg)

	if cfg.DB.Driver != "memory" && cfg.DB.Driver != "sqlite" {
		return Config{}, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
	if cfg.DB.Driver == "sqlite" && cfg.DB.Path == "" {
		cfg.DB.Path = cfg.DataDir + "/refbase.db"
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REFBASE_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = port
		}
	}
	if v := os.Getenv("REFBASE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("REFBASE_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("REFBASE_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("REFBASE_DB_PATH"); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv("REFBASE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REFBASE_DISABLE_TLS"); v == "true" {
		cfg.TLS = false
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".refbase"
	}
	return home + "/.refbase"
}
