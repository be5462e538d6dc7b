// Package store owns the files teledispatch keeps under its home directory:
// the config written on first run, the pid file and the stats log.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// locks serializes writers of the same file within the process.
var locks = &pathLocks{byPath: map[string]*sync.Mutex{}}

type pathLocks struct {
	mu     sync.Mutex
	byPath map[string]*sync.Mutex
}

func (l *pathLocks) lock(path string) func() {
	l.mu.Lock()
	m, ok := l.byPath[path]
	if !ok {
		m = &sync.Mutex{}
		l.byPath[path] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func normalize(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	return filepath.Clean(path), nil
}

// WriteFile replaces path with data through a temp file and rename, so a
// reader never sees a partial file. Parent directories are created.
func WriteFile(path string, data []byte) error {
	path, err := normalize(path)
	if err != nil {
		return err
	}
	defer locks.lock(path)()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write temp file for %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace file %q: %w", path, err)
	}
	return nil
}

func appendLine(path, line string) error {
	path, err := normalize(path)
	if err != nil {
		return err
	}
	defer locks.lock(path)()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %q for append: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append to %q: %w", path, err)
	}
	return nil
}
