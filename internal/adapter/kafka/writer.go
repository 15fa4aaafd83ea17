package kafka

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces outbox messages to a Kafka topic.
// It implements outbox.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, clock: clock, logger: logger}
}

// LoadBatch publishes msgs in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, msgs []domain.OutboxMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	processedAt := w.clock.Now().UTC()
	out := make([]kafkago.Message, len(msgs))
	for i := range msgs {
		out[i] = toMessage(msgs[i], processedAt)
	}
	if err := w.writer.WriteMessages(ctx, out...); err != nil {
		return err
	}
	w.logger.Debug("outbox batch written", "topic", w.writer.Topic, "count", len(out))
	return nil
}

// Close flushes and closes the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// toMessage converts an outbox message, emitting headers in key order followed
// by processed_at.
func toMessage(msg domain.OutboxMessage, processedAt time.Time) kafkago.Message {
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys)+1)
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(msg.Headers[k])})
	}
	headers = append(headers, kafkago.Header{Key: "processed_at", Value: []byte(processedAt.Format(time.RFC3339))})

	return kafkago.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}
