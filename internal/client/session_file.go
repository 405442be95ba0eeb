package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/glebk/status-board/internal/domain"
)

// StoredSession is what statusctl keeps between runs
type StoredSession struct {
	domain.Session
	URL string `json:"url"`
}

// DefaultSessionPath is $XDG_CONFIG_HOME/statusctl/session.json or its platform equivalent
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "statusctl", "session.json"), nil
}

// SaveSession writes the session readable only by the current user
func SaveSession(path string, s StoredSession) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// LoadSession returns domain.ErrNoSession when nothing usable is stored
func LoadSession(path string) (StoredSession, error) {
	var s StoredSession

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, domain.ErrNoSession
	}
	if err != nil {
		return s, fmt.Errorf("failed to read session: %w", err)
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse session %s: %w", path, err)
	}
	if !s.Valid() {
		return s, domain.ErrNoSession
	}
	return s, nil
}

// ClearSession discards the stored session. A missing file is not an error.
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
