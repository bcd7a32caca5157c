// Package sessionstore persists the Telegram session credential produced by
// bootstrap and adapts it to the client library's session storage.
package sessionstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tgbridge/internal/shared/logging"
)

// DefaultPath is where the credential lives when TG_SESSION_PATH is unset.
const DefaultPath = "/data/tg_user.session"

// FileStore reads the credential from a single file. The file is read on every
// Load so a credential written by bootstrap after startup is picked up without
// a restart.
type FileStore struct {
	path   string
	logger logging.Logger
}

// NewFileStore returns a store rooted at path.
func NewFileStore(path string, logger logging.Logger) *FileStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &FileStore{path: path, logger: logging.OrNop(logger)}
}

// Path returns the credential file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the trimmed credential. A missing file yields "" with no error;
// any other read failure is logged and returned.
func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		s.logger.Warn("Failed to read Telegram session at %s: %v", s.path, err)
		return "", fmt.Errorf("read session %s: %w", s.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Exists reports whether a non-empty credential is currently stored.
func (s *FileStore) Exists() bool {
	credential, err := s.Load()
	return err == nil && credential != ""
}

// Save writes the credential, creating parent directories as needed. The write
// goes through a temp file and rename so readers never see a partial blob.
func (s *FileStore) Save(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return errors.New("refusing to save an empty session")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tg_session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(credential + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("install session: %w", err)
	}
	s.logger.Info("Telegram session saved to %s", s.path)
	return nil
}
