package content

import (
	"context"
	"sync"

	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
)

// MemoryCatalog is an in-process catalog for tests and development.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]*Item
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[string]*Item)}
}

// Put adds or replaces an item.
func (c *MemoryCatalog) Put(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := item
	cp.Payload = append([]byte(nil), item.Payload...)
	c.items[item.ID] = &cp
}

func (c *MemoryCatalog) Fetch(_ context.Context, id string) (*Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *item
	cp.Payload = append([]byte(nil), item.Payload...)
	return &cp, nil
}

func (c *MemoryCatalog) Remove(ctx context.Context, id, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !item.Removed {
		now := requesttime.Now(ctx)
		item.Removed = true
		item.RemovedAt = &now
	}
	return nil
}

func (c *MemoryCatalog) Restore(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	item.Removed = false
	item.RemovedAt = nil
	return nil
}
