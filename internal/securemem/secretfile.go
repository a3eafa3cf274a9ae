package securemem

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretLen is the size in bytes of a generated shared signing secret.
const SecretLen = 32

// MinSecretLen is the smallest secret LoadFile accepts.
const MinSecretLen = 16

var (
	// ErrSecretTooShort is returned when a secret file holds fewer than MinSecretLen bytes.
	ErrSecretTooShort = errors.New("securemem: secret too short")
	// ErrSecretPerms is returned when a secret file is readable by group or others.
	ErrSecretPerms = errors.New("securemem: secret file permissions too open")
)

// GenerateSecret creates a new random secret in locked memory.
func GenerateSecret() (*String, error) {
	raw := make([]byte, SecretLen)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("securemem: generate secret: %w", err)
	}
	// NewStringFromBytes wipes raw
	return NewStringFromBytes(raw), nil
}

// LoadFile reads a hex-encoded secret from path into locked memory.
// The file must not be readable by group or others.
func LoadFile(path string) (*String, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("securemem: stat secret file: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %04o", ErrSecretPerms, path, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("securemem: read secret file: %w", err)
	}
	defer SecureWipe(data)

	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("securemem: decode secret file: %w", err)
	}
	if len(raw) < MinSecretLen {
		SecureWipe(raw)
		return nil, ErrSecretTooShort
	}

	return NewStringFromBytes(raw), nil
}

// WriteFile stores the secret hex-encoded at path with mode 0600.
// The parent directory is created if needed.
func WriteFile(path string, secret *String) error {
	if secret.IsEmpty() {
		return errors.New("securemem: refusing to write empty secret")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("securemem: create secret directory: %w", err)
	}

	var writeErr error
	secret.WithBytes(func(raw []byte) {
		encoded := []byte(hex.EncodeToString(raw) + "\n")
		defer SecureWipe(encoded)
		writeErr = os.WriteFile(path, encoded, 0o600)
	})
	if writeErr != nil {
		return fmt.Errorf("securemem: write secret file: %w", writeErr)
	}
	return nil
}
