package tuta

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SessionID is the (listId, elementId) address of a server-side session,
// derived from the access token. It travels as a two-element JSON array.
type SessionID struct {
	ListID    string
	ElementID string
}

// MarshalJSON encodes the pair as ["listId", "elementId"].
func (s SessionID) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{s.ListID, s.ElementID})
}

// UnmarshalJSON decodes the two-element array form.
func (s *SessionID) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	s.ListID, s.ElementID = pair[0], pair[1]
	return nil
}

// Session is the locally persisted state of an authenticated session.
type Session struct {
	BaseURL     string     `json:"baseUrl"`
	AccessToken string     `json:"accessToken"`
	UserID      string     `json:"userId"`
	SessionID   *SessionID `json:"sessionId,omitempty"`
}

// SessionStore reads and writes the persisted session.
type SessionStore interface {
	// Load returns the stored session, or nil when none is stored.
	Load() (*Session, error)
	// Save persists the session.
	Save(*Session) error
	// Clear removes the stored session.
	Clear() error
}

// NoSessionPersistenceEnv disables session persistence entirely when set
// to "1", "true" or "yes".
const NoSessionPersistenceEnv = "TUTANOTA_NO_SESSION_PERSISTENCE"

const (
	sessionDirName  = "tutanota-cli"
	sessionFileName = "session.json"
	sessionFileMode = 0600
	sessionDirMode  = 0700
)

// DefaultSessionStore returns the store for the standard session path
// (${XDG_CONFIG_HOME:-$HOME/.config}/tutanota-cli/session.json), or a
// no-op store when persistence is disabled via the environment.
func DefaultSessionStore() (SessionStore, error) {
	if persistenceDisabled() {
		return NoopSessionStore{}, nil
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return &FileSessionStore{
		path: filepath.Join(configDir, sessionDirName, sessionFileName),
	}, nil
}

func persistenceDisabled() bool {
	switch strings.ToLower(os.Getenv(NoSessionPersistenceEnv)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// FileSessionStore persists the session as a JSON file with secure
// permissions (0600 file, 0700 directory).
type FileSessionStore struct {
	path string
}

// NewFileSessionStore creates a store at an explicit path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Path returns the session file location.
func (s *FileSessionStore) Path() string {
	return s.path
}

// Load reads the stored session. A missing file is not an error.
func (s *FileSessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return &session, nil
}

// Save writes the session, creating the directory as needed.
func (s *FileSessionStore) Save(session *Session) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), sessionDirMode); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, sessionFileMode); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Clear removes the session file. A missing file is not an error.
func (s *FileSessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// NoopSessionStore neither reads nor writes anything. It backs the
// persistence kill-switch.
type NoopSessionStore struct{}

// Load always reports no stored session.
func (NoopSessionStore) Load() (*Session, error) { return nil, nil }

// Save discards the session.
func (NoopSessionStore) Save(*Session) error { return nil }

// Clear does nothing.
func (NoopSessionStore) Clear() error { return nil }
