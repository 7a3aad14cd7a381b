package store

import (
	"context"
	"sync"

	"guardian/internal/ledger/models"
	"guardian/pkg/platform/sentinel"
	platformsync "guardian/pkg/platform/sync"
)

// InMemoryStore keeps offender records in a map. Read-modify-write on one
// subject is serialized by a sharded lock; the map itself by an RWMutex.
type InMemoryStore struct {
	locks   *platformsync.ShardedMutex
	mu      sync.RWMutex
	records map[string]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		locks:   platformsync.NewShardedMutex(),
		records: make(map[string]*models.Record),
	}
}

func (s *InMemoryStore) load(subject models.Subject) *models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[subject.Key()]; ok {
		return r.Clone()
	}
	return nil
}

func (s *InMemoryStore) put(r *models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Subject.Key()] = r.Clone()
}

func (s *InMemoryStore) Increment(_ context.Context, v models.Violation, threshold int) (*models.Outcome, error) {
	key := v.Subject.Key()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	record := s.load(v.Subject)
	if record == nil {
		record = models.NewRecord(v.Subject)
	}
	if record.HasKey(v.IdempotencyKey) {
		return &models.Outcome{Record: record, Duplicate: true}, nil
	}

	crossed := record.Apply(v, threshold)
	s.put(record)
	return &models.Outcome{Record: record.Clone(), Crossed: crossed}, nil
}

func (s *InMemoryStore) Find(_ context.Context, subject models.Subject) (*models.Record, error) {
	if r := s.load(subject); r != nil {
		return r, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) SetStatus(_ context.Context, subject models.Subject, status models.Status, entry models.HistoryEntry) (*models.StatusChange, error) {
	key := subject.Key()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	record := s.load(subject)
	if record == nil {
		record = models.NewRecord(subject)
	}
	from := record.Status
	if !record.MoveTo(status, entry) {
		return &models.StatusChange{Record: record, From: from}, nil
	}
	s.put(record)
	return &models.StatusChange{Record: record, From: from, Changed: true}, nil
}

func (s *InMemoryStore) Reset(_ context.Context, subject models.Subject, entry models.HistoryEntry) (*models.Record, error) {
	key := subject.Key()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	record := s.load(subject)
	if record == nil {
		return nil, sentinel.ErrNotFound
	}
	record.ViolationCount = 0
	record.Status = models.StatusActive
	record.History = append(record.History, entry)
	s.put(record)
	return record, nil
}

// CountByStatus is used by dashboard statistics.
func (s *InMemoryStore) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[models.Status]int{}
	for _, r := range s.records {
		out[r.Status]++
	}
	return out, nil
}

