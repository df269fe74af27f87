package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
)

// Settings reads and writes the key/value config table.
type Settings struct {
	db *sql.DB
}

func NewSettings(db *sql.DB) *Settings {
	return &Settings{db: db}
}

// GetConfig returns "" for a missing key.
func (s *Settings) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Settings) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// EnsureSecret returns the stored value for key, generating and storing n
// random bytes hex encoded on first use.
func (s *Settings) EnsureSecret(ctx context.Context, key string, n int) (string, error) {
	existing, err := s.GetConfig(ctx, key)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := hex.EncodeToString(buf)
	if err := s.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
