package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/maize-yield-etl/internal/config"
	"github.com/couchcryptid/maize-yield-etl/internal/domain"
)

// Writer publishes feature rows to a Kafka topic, one message per year.
// It implements pipeline.FeatureSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured feature topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaFeatureTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// WriteFeatures serializes every row of table and publishes them in a single
// WriteMessages call.
func (w *Writer) WriteFeatures(ctx context.Context, table domain.FeatureTable) error {
	if len(table.Rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(table.Rows))
	for i, row := range table.Rows {
		msg, err := serializeToMessage(table, row)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish feature rows: %w", err)
	}
	w.logger.Debug("feature rows published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// FeatureMessage is the JSON value of a published row. A nil feature has no data.
type FeatureMessage struct {
	RunID       string              `json:"run_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Year        int                 `json:"year"`
	Features    map[string]*float64 `json:"features"`
}

// serializeToMessage marshals one feature row into a Kafka message keyed by year.
func serializeToMessage(table domain.FeatureTable, row domain.FeatureRow) (kafkago.Message, error) {
	features, err := table.Named(row)
	if err != nil {
		return kafkago.Message{}, err
	}
	data, err := json.Marshal(FeatureMessage{
		RunID:       table.RunID,
		GeneratedAt: table.GeneratedAt,
		Year:        row.Year,
		Features:    features,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize feature row %d: %w", row.Year, err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(row.Year)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(table.RunID)},
			{Key: "generated_at", Value: []byte(table.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
