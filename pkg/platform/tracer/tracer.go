// Package tracer is a small tracing seam over OpenTelemetry. Services depend
// on Tracer and Span; production wires the OTel adapter and tests use Noop.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span; a non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute        { return Attribute{Key: key, Value: value} }
func Bool(key string, value bool) Attribute     { return Attribute{Key: key, Value: value} }
func Int(key string, value int) Attribute       { return Attribute{Key: key, Value: int64(value)} }
func Float(key string, value float64) Attribute { return Attribute{Key: key, Value: value} }

func Duration(key string, d time.Duration) Attribute {
	return Attribute{Key: key, Value: d.Milliseconds()}
}

// HashSubject shortens a subject identifier to 16 hex chars of its SHA-256 so
// spans never carry raw user identifiers.
func HashSubject(subjectID string) string {
	if subjectID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subjectID))
	return hex.EncodeToString(sum[:8])
}
