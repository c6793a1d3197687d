package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/schemasmith/schemasmith/config"
)

func validConfig() string {
	return "server:\n  host: \"127.0.0.1\"\n  port: 9090\nlogging:\n  level: info\n"
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "schemasmith.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestHolder_Get(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	got := h.Get()
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", got.Server.Port)
	}
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	updated := "server:\n  host: \"127.0.0.1\"\n  port: 9091\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if h.Get().Server.Port != 9091 {
		t.Errorf("Port after reload = %d, want 9091", h.Get().Server.Port)
	}
	if h.Get().Logging.Level != "debug" {
		t.Errorf("Level after reload = %s, want debug", h.Get().Logging.Level)
	}
}

func TestHolder_Reload_KeepsOldOnError(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := h.Reload(); err == nil {
		t.Fatal("Reload should fail on invalid config")
	}
	if h.Get().Server.Port != 9090 {
		t.Errorf("Port = %d, want old config kept", h.Get().Server.Port)
	}
}

func TestHolder_OnChange(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var mu sync.Mutex
	var gotLevel string
	h.OnChange(func(c *config.Config) {
		mu.Lock()
		gotLevel = c.Logging.Level
		mu.Unlock()
	})

	updated := "server:\n  port: 9090\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotLevel != "error" {
		t.Errorf("OnChange saw level %q, want error", gotLevel)
	}
}

func TestHolder_OnError(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var mu sync.Mutex
	var failures int
	changes := 0
	h.OnError(func(err error) {
		mu.Lock()
		failures++
		mu.Unlock()
		if err == nil {
			t.Error("OnError called with nil error")
		}
	})
	h.OnChange(func(*config.Config) { changes++ })

	if err := os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err == nil {
		t.Fatal("Reload should fail on invalid config")
	}

	mu.Lock()
	defer mu.Unlock()
	if failures != 1 {
		t.Errorf("OnError fired %d times, want 1", failures)
	}
	if changes != 0 {
		t.Errorf("OnChange fired %d times on failed reload, want 0", changes)
	}
}
