package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/water-balance-service/internal/config"
	"github.com/couchcryptid/water-balance-service/internal/domain"
	"github.com/couchcryptid/water-balance-service/internal/store"
	kafkago "github.com/segmentio/kafka-go"
)

// BalanceMessage is the JSON value published for one month of a snapshot.
type BalanceMessage struct {
	SnapshotID     string    `json:"snapshot_id"`
	Source         string    `json:"source"`
	LoadedAt       time.Time `json:"loaded_at"`
	Month          string    `json:"month"`
	L1             float64   `json:"l1"`
	L2             float64   `json:"l2"`
	L3             float64   `json:"l3"`
	Stage01Loss    float64   `json:"stage01_loss"`
	Stage02Loss    float64   `json:"stage02_loss"`
	TotalLoss      float64   `json:"total_loss"`
	LossPercentage float64   `json:"loss_percentage"`
	Efficiency     float64   `json:"efficiency"`
	Valid          bool      `json:"valid"`
}

// messageWriter is the subset of kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes monthly balances to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured balance topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaBalanceTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishBalances writes one message per period of snap in a single
// WriteMessages call. Messages are keyed by month so a month's history stays
// on one partition.
func (w *Writer) PublishBalances(ctx context.Context, snap *store.Snapshot) error {
	if snap == nil || len(snap.Dataset.Periods) == 0 {
		return nil
	}
	msgs, err := serializeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write balances: %w", err)
	}
	w.logger.Debug("balances published", "snapshot_id", snap.ID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeSnapshot(snap *store.Snapshot) ([]kafkago.Message, error) {
	trend := domain.EfficiencyTrend(snap.Dataset)
	msgs := make([]kafkago.Message, len(snap.Dataset.Periods))
	for i, p := range snap.Dataset.Periods {
		msg, err := serializeToMessage(BalanceMessage{
			SnapshotID:     snap.ID,
			Source:         snap.Source,
			LoadedAt:       snap.LoadedAt,
			Month:          p.Month,
			L1:             p.L1,
			L2:             p.L2,
			L3:             p.L3,
			Stage01Loss:    p.Stage01Loss,
			Stage02Loss:    p.Stage02Loss,
			TotalLoss:      p.TotalLoss,
			LossPercentage: trend[i].LossPercentage,
			Efficiency:     trend[i].Overall,
			Valid:          snap.Report.Valid,
		})
		if err != nil {
			return nil, err
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// serializeToMessage marshals a BalanceMessage into a Kafka message.
func serializeToMessage(m BalanceMessage) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize balance %s: %w", m.Month, err)
	}
	return kafkago.Message{
		Key:   []byte(m.Month),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "snapshot_id", Value: []byte(m.SnapshotID)},
			{Key: "loaded_at", Value: []byte(m.LoadedAt.Format(time.RFC3339))},
		},
	}, nil
}
