// Package hashes holds the fingerprint registries consulted by scanning and
// Content-ID: known illegal material and registered copyrighted works.
// Entries are keyed by the hex SHA-256 of the content payload.
package hashes

import (
	"context"
	"strings"
	"sync"
	"time"

	"guardian/internal/scanning/models"
	"guardian/pkg/platform/sentinel"
)

// Name identifies a registry.
type Name string

const (
	Illegal   Name = "illegal"
	Copyright Name = "copyright"
)

// Entry is one registered fingerprint.
type Entry struct {
	Hash      string               `json:"hash"`
	Category  models.ViolationType `json:"category"`
	Reference string               `json:"reference,omitempty"`
	AddedAt   time.Time            `json:"added_at"`
}

// InMemoryRegistry is a map-backed registry.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	name    Name
	entries map[string]Entry
}

func NewInMemoryRegistry(name Name) *InMemoryRegistry {
	return &InMemoryRegistry{name: name, entries: make(map[string]Entry)}
}

func (r *InMemoryRegistry) Name() Name { return r.name }

// Add registers e, replacing any entry with the same hash. A missing
// category defaults per registry.
func (r *InMemoryRegistry) Add(_ context.Context, e Entry) error {
	e.Hash = strings.ToLower(e.Hash)
	if e.Category == "" {
		e.Category = DefaultCategory(r.name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Hash] = e
	return nil
}

// Lookup returns sentinel.ErrNotFound for unregistered fingerprints.
func (r *InMemoryRegistry) Lookup(_ context.Context, hash string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(hash)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

// DefaultCategory is the violation recorded for a match without one.
func DefaultCategory(name Name) models.ViolationType {
	if name == Copyright {
		return models.ViolationCopyright
	}
	return models.ViolationChildExploitation
}
