// Package storage persists machine-local credentials under the DevNexus
// home directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Credentials is durable, machine-local identity metadata. It never leaves
// this machine; the access token is stored separately.
type Credentials struct {
	// UserID is the server-issued user id the token was minted for.
	UserID string `json:"userId"`
	// DisplayName is the profile name at link time, for prompts only.
	DisplayName string `json:"displayName,omitempty"`
	// LinkedAtMs is the wall-clock timestamp of the device link.
	LinkedAtMs int64 `json:"linkedAtMs,omitempty"`
}

const credentialsFileName = "credentials.json"

// SaveToken writes the access token with restrictive permissions.
func SaveToken(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("refusing to save empty token")
	}
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// LoadToken reads the access token file.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("empty token file %s", path)
	}
	return token, nil
}

// SaveCredentials writes the credentials entry to disk.
func SaveCredentials(home string, creds Credentials) error {
	if strings.TrimSpace(creds.UserID) == "" {
		return fmt.Errorf("missing user id")
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	path := filepath.Join(home, credentialsFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// LoadCredentials reads the credentials entry. ok is false when no entry
// exists.
func LoadCredentials(home string) (creds Credentials, ok bool, err error) {
	path := filepath.Join(home, credentialsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, false, nil
		}
		return Credentials{}, false, err
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return creds, true, nil
}
