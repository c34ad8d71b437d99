package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 8560 {
		t.Errorf("Expected default port 8560, got %d", cfg.HTTPPort)
	}
	if cfg.DB.Driver != "memory" {
		t.Errorf("Expected memory driver, got %q", cfg.DB.Driver)
	}
	if len(cfg.Locales) == 0 {
		t.Errorf("Defaults should carry locales")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
http_port: 9000
data_dir: /tmp/refbase-test
auth_token: s3cret
db:
  driver: sqlite
locales:
  - id: 1
    code: en
  - id: 5
    code: nl
log_level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("REFBASE_HTTP_PORT", "9100")
	t.Setenv("REFBASE_DB_PATH", "/tmp/override.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 9100 {
		t.Errorf("Environment should override the file, got %d", cfg.HTTPPort)
	}
	if cfg.AuthToken != "s3cret" || cfg.LogLevel != "debug" {
		t.Errorf("File values lost: %+v", cfg)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "/tmp/override.db" {
		t.Errorf("Unexpected db config: %+v", cfg.DB)
	}
	if len(cfg.Locales) != 2 || cfg.Locales[1].Code != "nl" {
		t.Errorf("Unexpected locales: %+v", cfg.Locales)
	}
}

func TestSqliteDefaultPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("db:\n  driver: sqlite\ndata_dir: /data/refbase\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB.Path != "/data/refbase/refbase.db" {
		t.Errorf("Expected the derived sqlite path, got %q", cfg.DB.Path)
	}
}

func TestUnknownDriverRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("db:\n  driver: oracle\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Expected an error for an unknown driver")
	}
}
