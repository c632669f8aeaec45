// Package events delivers domain events to the outside world: mention
// notifications and the committed changes of audited collections.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is the envelope of every published message
type Event struct {
	Type        string          `json:"type"`
	CommunityID string          `json:"community_id,omitempty"`
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NewEvent builds an event with payload encoded as JSON
func NewEvent(typ, communityID, key string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s event: %w", typ, err)
	}
	return Event{Type: typ, CommunityID: communityID, Key: key, Payload: data, OccurredAt: time.Now().UTC()}, nil
}

// Publisher sends events to a message broker
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// KafkaConfig configures the Kafka publisher
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

var ErrNoBrokers = errors.New("no kafka brokers configured")

// KafkaPublisher writes events to one Kafka topic, keyed so that the events
// of one entity stay ordered within a partition
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a synchronous publisher waiting for all replicas
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaPublisher{writer: w}, nil
}

// Publish writes events in one batch
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.Key),
			Value: value,
			Time:  ev.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(ev.Type)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish events: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// LogPublisher logs events instead of sending them, for running without a broker
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher creates a publisher writing to log
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, events ...Event) error {
	for _, ev := range events {
		p.log.Info("event", "type", ev.Type, "community", ev.CommunityID, "key", ev.Key, "payload", string(ev.Payload))
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Fanout publishes every event to each of its publishers in order
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, events ...Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
