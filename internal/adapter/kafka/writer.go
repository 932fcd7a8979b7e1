package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/desalination-map/internal/config"
	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys set on every aggregate message.
const (
	HeaderSnapshotAt = "snapshot_at"
	HeaderSourceURL  = "source_url"
)

// batchTimeout bounds how long WriteMessages waits to fill a batch. The
// kafka-go default of one second would stall every refresh.
const batchTimeout = 10 * time.Millisecond

// Writer produces country aggregates to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured aggregate topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 5 * time.Second,
		BatchTimeout: batchTimeout,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// Publish writes one message per country in a single WriteMessages call.
// Messages are keyed by country so each country's history stays on one
// partition.
func (w *Writer) Publish(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Aggregates) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Aggregates))
	for i, agg := range snap.Aggregates {
		msg, err := serializeToMessage(agg, snap)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d aggregates to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.metrics.MessagesProduced.Add(float64(len(msgs)))
	w.logger.Debug("aggregates published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CountryAggregate into a Kafka message.
func serializeToMessage(agg domain.CountryAggregate, snap domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(agg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize aggregate: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(agg.Country),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderSnapshotAt, Value: []byte(snap.GeneratedAt.UTC().Format(time.RFC3339))},
			{Key: HeaderSourceURL, Value: []byte(snap.SourceURL)},
		},
	}, nil
}
