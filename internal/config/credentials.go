// pattern: Imperative Shell

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const credentialsFileName = ".chatgpt-nvim.json"

// defaultCredentials is the exact first-run file content. Existing installs
// were written by Python's json.dump, so separators and key order must match.
const defaultCredentials = `{"authorization": "", "session_token": ""}`

// Credentials authenticate against the chat backend.
type Credentials struct {
	Authorization string `json:"authorization"`
	SessionToken  string `json:"session_token"`
}

// Empty reports whether neither credential is set.
func (c Credentials) Empty() bool {
	return c.Authorization == "" && c.SessionToken == ""
}

// CredentialsPath returns ~/.chatgpt-nvim.json.
func CredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return credentialsFileName
	}
	return filepath.Join(home, credentialsFileName)
}

// LoadCredentials loads (creating if needed) the file at CredentialsPath.
func LoadCredentials() (Credentials, error) {
	return LoadOrCreateCredentials(CredentialsPath())
}

// LoadOrCreateCredentials writes the empty default record to path when no
// file exists, then reads the file back.
func LoadOrCreateCredentials(path string) (Credentials, error) {
	if err := ensureCredentials(path); err != nil {
		return Credentials{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return creds, nil
}

// ensureCredentials creates the default file. Several editors can start the
// plugin at once, so creation happens under a file lock.
func ensureCredentials(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat credentials: %w", err)
	}

	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("failed to lock credentials: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	// Another process may have won the race while we waited.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(defaultCredentials), 0600); err != nil {
		return fmt.Errorf("failed to write default credentials: %w", err)
	}
	return nil
}
