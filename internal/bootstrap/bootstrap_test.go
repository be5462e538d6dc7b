package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neoclaw-ai/teledispatch/internal/config"
)

func TestInitializeCreatesRequiredFilesAndDirs(t *testing.T) {
	homeDir := filepath.Join(t.TempDir(), ".teledispatch")
	cfg := &config.Config{HomeDir: homeDir}

	created, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !created {
		t.Fatalf("expected config to be created on first run")
	}

	for _, path := range []string{cfg.ConfigPath(), cfg.DataDir(), cfg.StatsPath()} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %q to exist: %v", path, err)
		}
	}

	raw, err := os.ReadFile(cfg.ConfigPath())
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(raw), "$TELEGRAM_BOT_TOKEN") {
		t.Fatalf("expected default config template, got %q", string(raw))
	}
}

func TestInitializeKeepsExistingConfig(t *testing.T) {
	homeDir := filepath.Join(t.TempDir(), ".teledispatch")
	cfg := &config.Config{HomeDir: homeDir}
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	custom := "[telegram]\ntoken = \"mine\"\n"
	if err := os.WriteFile(cfg.ConfigPath(), []byte(custom), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	created, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if created {
		t.Fatalf("expected existing config to be kept")
	}
	raw, err := os.ReadFile(cfg.ConfigPath())
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(raw) != custom {
		t.Fatalf("config was overwritten: %q", string(raw))
	}

	created, err = Initialize(cfg)
	if err != nil || created {
		t.Fatalf("expected idempotent initialize, got created=%v err=%v", created, err)
	}
}
