// Package registry is the verified-subject registry: a fast lookup of
// subjects holding an unexpired approval. The verification store remains
// the source of truth; registry entries expire with the approval.
package registry

import (
	"context"
	"sync"
	"time"

	"guardian/internal/verification/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// Entry records one subject's current approval.
type Entry struct {
	SubjectID id.SubjectID      `json:"subject_id"`
	RequestID id.VerificationID `json:"request_id"`
	Method    models.Method     `json:"method"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// InMemoryRegistry keeps entries in a map and drops them lazily on expiry.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	entries map[id.SubjectID]Entry
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{entries: make(map[id.SubjectID]Entry)}
}

func (r *InMemoryRegistry) Register(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.SubjectID] = e
	return nil
}

// Lookup returns sentinel.ErrNotFound when the subject has no live entry.
func (r *InMemoryRegistry) Lookup(_ context.Context, subject id.SubjectID, now time.Time) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[subject]
	r.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !now.Before(e.ExpiresAt) {
		r.mu.Lock()
		delete(r.entries, subject)
		r.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (r *InMemoryRegistry) Remove(_ context.Context, subject id.SubjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, subject)
	return nil
}
