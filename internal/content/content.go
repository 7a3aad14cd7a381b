// Package content is the port to the platform's content catalog: the
// engine fetches items to scan and removes or restores them as actions.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Type of a content item.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypeText  Type = "text"
)

func (t Type) IsValid() bool {
	return t == TypeImage || t == TypeVideo || t == TypeText
}

// Metadata is what uploaders declare about an item.
type Metadata struct {
	DeclaredAge *int     `json:"declared_age,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Title       string   `json:"title,omitempty"`
}

// Item is one piece of user content.
type Item struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Type      Type       `json:"type"`
	Payload   []byte     `json:"payload"`
	Metadata  Metadata   `json:"metadata"`
	Removed   bool       `json:"removed"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

// Fingerprint is the hex SHA-256 of the payload, used for registry lookups.
func Fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Catalog is implemented by the content store of the hosting platform.
// Fetch returns sentinel.ErrNotFound for unknown ids. Remove and Restore
// are idempotent.
type Catalog interface {
	Fetch(ctx context.Context, id string) (*Item, error)
	Remove(ctx context.Context, id, reason string) error
	Restore(ctx context.Context, id string) error
}
