// Package storage persists machine-local CLI state: the access token and the
// per-counterparty read watermarks.
package storage

import (
	"fmt"
	"os"
	"strings"
)

// SaveToken writes the access token to a file with restrictive permissions.
func SaveToken(path, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("missing token")
	}
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// LoadToken reads the access token from a file.
//
// ok is false when no token has been saved yet.
func LoadToken(path string) (token string, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read token: %w", err)
	}
	token = strings.TrimSpace(string(data))
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}
