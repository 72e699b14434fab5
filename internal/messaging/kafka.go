package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/config"
	"github.com/temcen/folio/pkg/models"
)

const DefaultImpressionsTopic = "recommendation-impressions"

// ImpressionMessage is the payload published for every shown item.
type ImpressionMessage struct {
	EventID   uuid.UUID       `json:"event_id"`
	RequestID string          `json:"request_id"`
	ViewerID  *int64          `json:"viewer_id,omitempty"`
	ContentID int64           `json:"content_id"`
	Strategy  models.Strategy `json:"strategy"`
	Score     float64         `json:"score"`
	Position  int             `json:"position"`
	ShownAt   time.Time       `json:"shown_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ImpressionPublisher is an audit sink that publishes impressions to Kafka,
// keyed by request id so one request's impressions stay on one partition.
type ImpressionPublisher struct {
	writer  messageWriter
	topic   string
	brokers []string
	logger  *logrus.Logger
}

func NewImpressionPublisher(cfg *config.Config, logger *logrus.Logger) (*ImpressionPublisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka audit sink requires at least one broker")
	}

	topic := cfg.Kafka.Topics.Impressions
	if topic == "" {
		topic = DefaultImpressionsTopic
	}
	batchTimeout := cfg.Kafka.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: batchTimeout,
		BatchSize:    100,
	}

	return newImpressionPublisher(writer, topic, cfg.Kafka.Brokers, logger), nil
}

func newImpressionPublisher(writer messageWriter, topic string, brokers []string, logger *logrus.Logger) *ImpressionPublisher {
	return &ImpressionPublisher{
		writer:  writer,
		topic:   topic,
		brokers: brokers,
		logger:  logger,
	}
}

// Record publishes one message per entry in a single write.
func (p *ImpressionPublisher) Record(ctx context.Context, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		payload := ImpressionMessage{
			EventID:   uuid.New(),
			RequestID: e.RequestID,
			ViewerID:  e.ViewerID,
			ContentID: e.ContentID,
			Strategy:  e.Strategy,
			Score:     e.Score,
			Position:  e.Position,
			ShownAt:   e.ShownAt,
		}

		value, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal impression: %w", err)
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(e.RequestID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "request_id", Value: []byte(e.RequestID)},
				{Key: "strategy", Value: []byte(e.Strategy)},
				{Key: "timestamp", Value: []byte(e.ShownAt.Format(time.RFC3339))},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to write impressions to Kafka: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":    p.topic,
		"messages": len(messages),
	}).Debug("Impressions published to Kafka")

	return nil
}

// Ping dials the first reachable broker.
func (p *ImpressionPublisher) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no brokers configured")
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

func (p *ImpressionPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close impression writer: %w", err)
	}
	return nil
}
