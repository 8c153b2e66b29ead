// Package credentials persists the CLI session between runs.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scansetu/scansetu/pkg/sdk"
)

const (
	dirName  = ".scansetu"
	fileName = "credentials.json"
)

// FileStore implements sdk.CredentialStore with a JSON file readable only
// by the current user.
type FileStore struct {
	path string
}

var _ sdk.CredentialStore = (*FileStore)(nil)

// NewFileStore returns a store under ~/.scansetu.
func NewFileStore() (*FileStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return NewFileStoreAt(filepath.Join(home, dirName))
}

// NewFileStoreAt returns a store keeping its file in dir.
func NewFileStoreAt(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, fileName)}, nil
}

// Path returns the credentials file location.
func (s *FileStore) Path() string { return s.path }

// SaveCredentials writes c atomically.
func (s *FileStore) SaveCredentials(c *sdk.Credentials) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// LoadCredentials reads the stored session, returning a wrapped
// sdk.ErrNoCredentials when there is none.
func (s *FileStore) LoadCredentials() (*sdk.Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", s.path, sdk.ErrNoCredentials)
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var creds sdk.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

// DeleteCredentials removes the file; a missing file is not an error.
func (s *FileStore) DeleteCredentials() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
