package actionlog

import (
	"context"
	"log/slog"
	"sync"

	id "guardian/pkg/domain"
	"guardian/pkg/platform/middleware/requesttime"
)

// Recorder appends entries to the log. It uses the storage layer for
// persistence so tests can swap sinks easily.
type Recorder struct {
	store   Store
	entries chan Entry
	wg      sync.WaitGroup
	logger  *slog.Logger
	async   bool
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Entries are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) Option {
	return func(r *Recorder) {
		if size > 0 {
			r.entries = make(chan Entry, size)
			r.async = true
		}
	}
}

// WithLogger sets a logger for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.async {
		r.wg.Add(1)
		go r.drain()
	}
	return r
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for entry := range r.entries {
		if err := r.store.Append(context.Background(), entry); err != nil {
			r.logFailure(context.Background(), entry, err)
		}
	}
}

// Close stops the async recorder and waits for queued entries to persist.
func (r *Recorder) Close() {
	if r.async && r.entries != nil {
		close(r.entries)
		r.wg.Wait()
	}
}

// Record assigns an ID and timestamp when missing and appends the entry.
// Persistence failures are logged; they never fail the caller's transition.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil {
		return
	}
	if entry.ID == (id.ActionID{}) {
		entry.ID = id.NewActionID()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = requesttime.Now(ctx)
	}
	if r.async {
		// Blocking send: dropping entries would break the append-only history.
		r.entries <- entry
		return
	}
	if err := r.store.Append(ctx, entry); err != nil {
		r.logFailure(ctx, entry, err)
	}
}

func (r *Recorder) ListByRequest(ctx context.Context, requestID string) ([]Entry, error) {
	return r.store.ListByRequest(ctx, requestID)
}

func (r *Recorder) ListByOwner(ctx context.Context, ownerID string) ([]Entry, error) {
	return r.store.ListByOwner(ctx, ownerID)
}

func (r *Recorder) logFailure(ctx context.Context, entry Entry, err error) {
	if r.logger == nil {
		return
	}
	r.logger.ErrorContext(ctx, "failed to persist action log entry",
		"error", err,
		"component", entry.Component,
		"request_id", entry.RequestID,
		"action", entry.Action,
	)
}
