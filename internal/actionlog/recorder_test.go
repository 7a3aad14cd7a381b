package actionlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "guardian/pkg/domain"
	"guardian/pkg/platform/middleware/requesttime"
)

func TestRecorderFillsIDAndTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	rec := NewRecorder(store)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	ctx := requesttime.WithTime(context.Background(), now)

	rec.Record(ctx, Entry{Component: ComponentReport, RequestID: "r1", OwnerID: "owner-1", Action: ActionContentRemoved})

	entries, err := rec.ListByRequest(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEqual(t, id.ActionID{}, entries[0].ID)
	assert.Equal(t, now, entries[0].RecordedAt)
}

func TestRecorderAsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	rec := NewRecorder(store, WithAsyncBuffer(4))

	for range 10 {
		rec.Record(context.Background(), Entry{Component: ComponentTakedown, RequestID: "t1", OwnerID: "o", Action: ActionSubmitted})
	}
	rec.Close()

	assert.Len(t, store.All(), 10)
	byOwner, err := store.ListByOwner(context.Background(), "o")
	require.NoError(t, err)
	assert.Len(t, byOwner, 10)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Entry{Action: ActionSubmitted})
	})
}
