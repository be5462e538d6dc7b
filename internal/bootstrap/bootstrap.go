// Package bootstrap prepares the teledispatch home directory on first run.
package bootstrap

import (
	"errors"
	"fmt"
	"os"

	"github.com/neoclaw-ai/teledispatch/internal/config"
	"github.com/neoclaw-ai/teledispatch/internal/store"
)

// Initialize creates the expected home tree if missing and reports whether a
// default config file had to be written.
func Initialize(cfg *config.Config) (bool, error) {
	dirs := []string{
		cfg.HomeDir,
		cfg.DataDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	defaultConfig, err := config.DefaultUserConfigTOML()
	if err != nil {
		return false, err
	}
	created, err := writeFileIfMissing(cfg.ConfigPath(), defaultConfig)
	if err != nil {
		return false, err
	}
	if _, err := writeFileIfMissing(cfg.StatsPath(), ""); err != nil {
		return false, err
	}
	return created, nil
}

func writeFileIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %q: %w", path, err)
	}

	if err := store.WriteFile(path, []byte(content)); err != nil {
		return false, err
	}
	return true, nil
}
