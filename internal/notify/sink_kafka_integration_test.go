//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"guardian/internal/notify"
	"guardian/internal/platform/config"
	"guardian/internal/platform/kafka/producer"
	"guardian/pkg/testutil/containers"
)

func TestKafkaSinkPublishesNotification(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	kc := containers.GetManager().GetKafka(t)
	ctx := context.Background()
	const topic = "guardian.notifications.test"
	require.NoError(t, kc.CreateTopic(ctx, topic, 1, 1))

	prod, err := producer.New(config.KafkaConfig{
		Brokers:         kc.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = prod.Close() })

	notifier := notify.NewNotifier(notify.NewKafkaSink(prod, topic), notify.WithMaxAttempts(1))
	require.NoError(t, notifier.Notify(ctx, notify.Notification{
		Kind:        notify.KindTakedownExecuted,
		Email:       "claims@studio.example",
		Subject:     "Takedown executed",
		ReferenceID: "takedown-42",
	}))

	consumer, err := kc.NewConsumer(ctx, "notify-test", topic)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	rec := kc.WaitForMessage(ctx, consumer, 30*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "takedown-42"
	})
	require.NotNil(t, rec, "notification was not published")

	var got notify.Notification
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, notify.KindTakedownExecuted, got.Kind)
	assert.Equal(t, "claims@studio.example", got.Email)
	assert.NotEmpty(t, got.ID)

	headers := map[string]string{}
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "takedown_executed", headers["kind"])
	assert.Equal(t, got.ID, headers["notification_id"])
}
