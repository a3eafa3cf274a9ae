// Package pidfile publishes the daemon's pid in the runtime directory so
// operators and service managers can find the running pfortnerd.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File is a pid file at a fixed path.
type File struct {
	path string
}

// New returns a pid file handle at path; nothing is written until Write.
func New(path string) *File {
	return &File{path: path}
}

// Write records the current process id, replacing any previous content.
func (p *File) Write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("pidfile: create directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("pidfile: write: %w", err)
	}
	return nil
}

// Read returns the recorded pid.
func (p *File) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("pidfile: read: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pidfile: malformed content: %w", err)
	}
	return pid, nil
}

// Remove deletes the pid file; a missing file is not an error.
func (p *File) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pidfile: remove: %w", err)
	}
	return nil
}

// Path returns the pid file location.
func (p *File) Path() string {
	return p.path
}

// Exists reports whether the pid file is present.
func (p *File) Exists() bool {
	_, err := os.Stat(p.path)
	return !os.IsNotExist(err)
}
