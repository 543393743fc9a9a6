package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/go-pkgz/lgr"
)

// ErrNotFound returned by backends when the key is absent
var ErrNotFound = errors.New("key not found")

// Backend is a local key-value store holding serialized text
type Backend interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Close() error
}

// Adapter serializes ordered collections into a Backend
type Adapter struct {
	backend Backend
}

// NewAdapter makes Adapter for the given backend
func NewAdapter(backend Backend) *Adapter {
	return &Adapter{backend: backend}
}

// Close closes underlying backend
func (a *Adapter) Close() error {
	return a.backend.Close()
}

// Save serializes collection to a JSON array and stores it under key
func Save[T any](a *Adapter, key string, collection []T) error {
	if collection == nil {
		collection = []T{}
	}
	data, err := json.Marshal(collection)
	if err != nil {
		return fmt.Errorf("failed to serialize %q: %w", key, err)
	}
	if err := a.backend.Set(key, string(data)); err != nil {
		return fmt.Errorf("failed to store %q: %w", key, err)
	}
	return nil
}

// Load deserializes the collection stored under key. Missing, empty or unparsable
// data results in an empty collection, never an error.
func Load[T any](a *Adapter, key string) []T {
	text, err := a.backend.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[WARN] failed to read %q, starting empty: %v", key, err)
			return []T{}
		}
		log.Printf("[DEBUG] no stored data for %q", key)
		return []T{}
	}

	text = string(bytes.TrimSpace([]byte(text)))
	if text == "" || text == "null" {
		return []T{}
	}

	var res []T
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		log.Printf("[WARN] corrupted data for %q, starting empty: %v", key, err)
		return []T{}
	}
	if res == nil {
		return []T{}
	}
	return res
}
