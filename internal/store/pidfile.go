package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned by Acquire when the pid file names another
// live process.
var ErrAlreadyRunning = errors.New("another teledispatch process is running")

// processAlive reports whether pid names a running process.
var processAlive = func(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// PIDFile marks the running dispatcher so a second `start` on the same home
// directory refuses to poll the same bot.
type PIDFile struct {
	path string
}

// NewPIDFile returns the pid file at path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the file location.
func (f *PIDFile) Path() string {
	return f.path
}

// Acquire records pid. A stale file left by a dead process is replaced.
func (f *PIDFile) Acquire(pid int) error {
	switch owner, err := f.Read(); {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	case owner != pid && processAlive(owner):
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, owner, f.path)
	}
	return WriteFile(f.path, []byte(strconv.Itoa(pid)+"\n"))
}

// Read returns the recorded pid.
func (f *PIDFile) Read() (int, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %q: %w", f.path, err)
	}
	return pid, nil
}

// Release removes the file. A missing file is not an error.
func (f *PIDFile) Release() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file %q: %w", f.path, err)
	}
	return nil
}
