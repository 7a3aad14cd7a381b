package tracer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"guardian/pkg/platform/tracer"
)

func TestNoopTracerKeepsContext(t *testing.T) {
	ctx := context.Background()
	got, span := tracer.NewNoop().Start(ctx, "scan.classify", tracer.String("content_type", "image"))
	assert.Equal(t, ctx, got)
	require.NotNil(t, span)
	span.AddEvent("classifier.timeout", tracer.Int("attempt", 1))
	span.End(errors.New("timeout"))
}

func TestOTelAdapterAcceptsAllAttributeKinds(t *testing.T) {
	tr := tracer.NewOTelFrom(noop.NewTracerProvider().Tracer("test"))
	_, span := tr.Start(context.Background(), "verification.provider",
		tracer.String("method", "biometric"),
		tracer.Bool("retryable", true),
		tracer.Int("attempt", 2),
		tracer.Float("confidence", 0.99),
	)
	span.SetAttributes(tracer.String("outcome", "approved"))
	span.End(nil)
}

func TestHashSubject(t *testing.T) {
	assert.Empty(t, tracer.HashSubject(""))
	h := tracer.HashSubject("user-42")
	assert.Len(t, h, 16)
	assert.Equal(t, h, tracer.HashSubject("user-42"))
	assert.NotEqual(t, h, tracer.HashSubject("user-43"))
}
