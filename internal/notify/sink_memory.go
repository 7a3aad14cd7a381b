package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrSimulatedFailure is returned by MemorySink while failures are queued.
var ErrSimulatedFailure = errors.New("simulated notification failure")

// MemorySink keeps notifications in memory for tests and local runs.
type MemorySink struct {
	mu       sync.Mutex
	sent     []Notification
	failures int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailNext makes the next n sends fail.
func (s *MemorySink) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

func (s *MemorySink) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return ErrSimulatedFailure
	}
	s.sent = append(s.sent, n)
	return nil
}

// Sent returns a copy of every delivered notification.
func (s *MemorySink) Sent() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}

// OfKind filters delivered notifications by kind.
func (s *MemorySink) OfKind(kind Kind) []Notification {
	var out []Notification
	for _, n := range s.Sent() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
