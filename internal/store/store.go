// Package store provides persistence of the learner's local state.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Keys of the persisted local state.
const (
	KeyUserSettings       = "userSettings"
	KeyScenariosCompleted = "scenariosCompleted"
	KeyMessagesSent       = "messagesSentCount"
	KeyCurrentStreak      = "currentStreak"
	KeyLastPracticeDate   = "lastPracticeDate"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("key not found")

// Repository defines the key/value interface for persisted local state.
// Values are JSON documents.
type Repository interface {
	// Get returns the raw value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// SetMany stores all entries atomically.
	SetMany(ctx context.Context, entries map[string][]byte) error

	// Ping verifies storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}

// LoadJSON decodes the value under key into dst. It reports false when the key
// is absent or holds a value that cannot be decoded, leaving dst untouched.
func LoadJSON(ctx context.Context, repo Repository, key string, dst any) (bool, error) {
	raw, err := repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, repo Repository, key string, v any) error {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return repo.Set(ctx, key, raw)
}

// SaveManyJSON encodes every value and stores them together.
func SaveManyJSON(ctx context.Context, repo Repository, values map[string]any) error {
	entries := make(map[string][]byte, len(values))
	for key, v := range values {
		raw, err := sonic.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = raw
	}
	return repo.SetMany(ctx, entries)
}
