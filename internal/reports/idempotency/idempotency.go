// Package idempotency remembers which report first claimed a dedupe key
// (content + reporter) so resubmissions within the window return the
// original report instead of counting again.
package idempotency

import (
	"context"
	"sync"
	"time"

	id "guardian/pkg/domain"
)

// Key is the dedupe key for one reporter's report about one content item.
func Key(contentID, reporterID string) string {
	return "report:" + contentID + ":" + reporterID
}

type entry struct {
	reportID  id.ReportID
	expiresAt time.Time
}

// InMemory is a process-local store. Expired keys are dropped on access
// and by Cleanup.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]entry)}
}

// Reserve claims key for reportID until now+ttl. When the key is already
// held it returns the holder and false.
func (s *InMemory) Reserve(_ context.Context, key string, reportID id.ReportID, now time.Time, ttl time.Duration) (id.ReportID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return e.reportID, false, nil
	}
	s.entries[key] = entry{reportID: reportID, expiresAt: now.Add(ttl)}
	return reportID, true, nil
}

// Release drops key, used when the reserving report could not be stored.
func (s *InMemory) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Cleanup removes keys expired at now and returns how many were removed.
func (s *InMemory) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
