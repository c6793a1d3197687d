package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schemasmith/schemasmith/config"
)

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "schemasmith.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090

env: production

data_dir: "/var/lib/smith"

schema:
  path: "/var/lib/smith/app.schema"

database:
  driver: "sqlite"
  dsn: "/var/lib/smith/app.db"

tools:
  apply: ["migrate", "push"]
  generate: ["migrate", "generate", "--schema", "{schema}"]
  timeout: 90s

logging:
  level: "debug"
  format: "console"
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if !cfg.Production() {
		t.Error("Production() = false, want true")
	}
	if cfg.Tools.Timeout != 90*time.Second {
		t.Errorf("Tools.Timeout = %v, want 90s", cfg.Tools.Timeout)
	}
	if got := cfg.ModelsDir(); got != filepath.Join("/var/lib/smith", "models") {
		t.Errorf("ModelsDir() = %s", got)
	}
	if got := cfg.BuildsDir(); got != filepath.Join("/var/lib/smith", "builds") {
		t.Errorf("BuildsDir() = %s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "server:\n  port: 8081\n")

	if cfg.Env != "development" {
		t.Errorf("Env = %s, want development", cfg.Env)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %s, want data", cfg.DataDir)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %s, want sqlite", cfg.Database.Driver)
	}
	if cfg.Tools.Timeout != 2*time.Minute {
		t.Errorf("Tools.Timeout = %v, want 2m", cfg.Tools.Timeout)
	}
	if len(cfg.Tools.Apply) == 0 || len(cfg.Tools.Generate) == 0 {
		t.Error("tool commands should have defaults")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
}

func TestLoad_DestructiveApplyDefault(t *testing.T) {
	cfg := writeAndLoad(t, "tools:\n  apply: [\"migrate\", \"push\"]\n")

	last := cfg.Tools.ApplyDestructive[len(cfg.Tools.ApplyDestructive)-1]
	if last != "--accept-data-loss" {
		t.Errorf("ApplyDestructive = %v, want apply + --accept-data-loss", cfg.Tools.ApplyDestructive)
	}
}

func TestLoad_InvalidLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemasmith.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("Load error = %v, want logging.level complaint", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SCHEMASMITH_SERVER_PORT", "9999")
	t.Setenv("SCHEMASMITH_LOG_LEVEL", "warn")

	cfg := writeAndLoad(t, "server:\n  port: 8080\nlogging:\n  level: info\n")

	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want env override 9999", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want env override warn", cfg.Logging.Level)
	}
}

func TestLoadWithFallback_NoFile(t *testing.T) {
	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Server.Port)
	}
}
