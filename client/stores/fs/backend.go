// Package fs provides a file system-based credential backend for vaultclient.
// Each profile is stored as its own JSON file, optionally sealed with a passphrase.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cerbyonvault/vaultclient/client"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

// Options configures a Backend
type Options struct {
	// Passphrase enables at-rest encryption when non-empty
	Passphrase string
}

// Backend stores one profile's credential pair as a file on disk
type Backend struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

var _ client.Backend = (*Backend)(nil)

// DefaultDir returns ~/.config/cerbyon (or the platform equivalent)
func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "cerbyon"), nil
}

// NewBackend creates a file backend for profile inside dir.
// If dir is empty, defaults to DefaultDir().
func NewBackend(dir, profile string, opts *Options) (*Backend, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if strings.ContainsAny(profile, `/\`) || profile == "." || profile == ".." {
		return nil, fmt.Errorf("invalid profile name %q", profile)
	}
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	b := &Backend{path: filepath.Join(dir, profile+".json")}
	if opts != nil && opts.Passphrase != "" {
		b.passphrase = []byte(opts.Passphrase)
	}
	return b, nil
}

// Path returns the path to the credentials file
func (b *Backend) Path() string {
	return b.path
}

// Read returns the stored bytes, or nil if the file does not exist.
// A file that cannot be unsealed with the configured passphrase reads as absent.
func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if b.passphrase == nil {
		return data, nil
	}
	plain, err := open(data, b.passphrase)
	if err != nil {
		return nil, nil
	}
	return plain, nil
}

// Write replaces the file atomically with owner-only permissions
func (b *Backend) Write(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Ensure directory exists with restricted permissions
	if err := os.MkdirAll(filepath.Dir(b.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if b.passphrase != nil {
		sealed, err := seal(data, b.passphrase)
		if err != nil {
			return err
		}
		data = sealed
	}
	return writeAtomicFile(b.path, data)
}

// Delete removes the file. A missing file is not an error.
func (b *Backend) Delete(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	return nil
}

// Profiles lists the profiles stored in dir (DefaultDir() if empty), sorted
func Profiles(dir string) ([]string, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok && !strings.HasPrefix(name, ".") {
			profiles = append(profiles, name)
		}
	}
	sort.Strings(profiles)
	return profiles, nil
}

// writeAtomicFile writes data to a file atomically by writing to a temp file first
func writeAtomicFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions on temp file: %w", err)
	}

	// Write data to temp file
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomically rename temp file to target path
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
