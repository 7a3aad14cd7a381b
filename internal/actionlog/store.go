package actionlog

import (
	"context"
)

// Store persists entries. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByRequest(ctx context.Context, requestID string) ([]Entry, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Entry, error)
}
