// Package kafka publishes finalized anomaly segments to the topic the
// downstream enrichment service consumes from.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
)

// SegmentWriter produces one message per analyzed series: the key is the
// series name and the value is the [["start","end"],...] segment list.
type SegmentWriter struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewSegmentWriter creates a Kafka producer for the segment topic.
func NewSegmentWriter(brokers []string, topic string, clock clockwork.Clock, logger *slog.Logger) *SegmentWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &SegmentWriter{writer: w, clock: clock, logger: logger}
}

// PublishSegments serializes and publishes one series' segments. An empty
// segment list is still published so consumers can distinguish "analyzed,
// nothing found" from "never analyzed".
func (w *SegmentWriter) PublishSegments(ctx context.Context, series string, method domain.Method, segments []domain.AnomalySegment) error {
	msg, err := segmentMessage(series, method, segments, w.clock.Now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish segments for %s: %w", series, err)
	}
	w.logger.Debug("published anomaly segments", "series", series, "segments", len(segments))
	return nil
}

func (w *SegmentWriter) Close() error {
	return w.writer.Close()
}

// segmentMessage marshals the segment list into a Kafka message.
func segmentMessage(series string, method domain.Method, segments []domain.AnomalySegment, now time.Time) (kafkago.Message, error) {
	if segments == nil {
		segments = []domain.AnomalySegment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize segments for %s: %w", series, err)
	}
	return kafkago.Message{
		Key:   []byte(series),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "series", Value: []byte(series)},
			{Key: "method", Value: []byte(method)},
			{Key: "produced_at", Value: []byte(now.UTC().Format(time.RFC3339))},
		},
	}, nil
}
