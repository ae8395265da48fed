// Package kafka forwards audit events to a Kafka topic, keyed by user so a
// user's events stay ordered within one partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "ecoprado/pkg/platform/audit"
)

// DefaultTopic receives audit events when no topic is configured.
const DefaultTopic = "ecoprado.audit"

// DefaultAppendTimeout bounds Append and EnsureTopic when the caller's context
// carries no deadline. It also caps record delivery inside the client.
const DefaultAppendTimeout = 5 * time.Second

// Message is the JSON value written for each event.
type Message struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	UserID       string `json:"user_id"`
	Action       string `json:"action"`
	Amount       string `json:"amount,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	RecordID     string `json:"record_id,omitempty"`
	Digest       string `json:"digest,omitempty"`
	Decision     string `json:"decision,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	ActorID      string `json:"actor_id,omitempty"`
}

// Sink implements audit.Sink on a franz-go producer.
type Sink struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
}

type Option func(*Sink)

// WithAppendTimeout overrides DefaultAppendTimeout.
func WithAppendTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New connects a producer to brokers. The client is owned by the Sink.
func New(brokers []string, topic string, opts ...Option) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka sink requires at least one broker")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	s := &Sink{topic: topic, timeout: DefaultAppendTimeout}
	for _, opt := range opts {
		opt(s)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordDeliveryTimeout(s.timeout),
		kgo.ProduceRequestTimeout(s.timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s.client = client
	return s, nil
}

// bounded applies the sink timeout unless ctx already has a deadline.
func (s *Sink) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureTopic creates the audit topic if it does not already exist.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	adm := kadm.NewClient(s.client)
	responses, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, resp := range responses {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Append produces the event and waits for the broker acknowledgement.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(toMessage(event))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(event.UserID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Ping checks that at least one broker is reachable.
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close flushes pending records and closes the client.
func (s *Sink) Close() {
	s.client.Close()
}

func toMessage(event audit.Event) Message {
	return Message{
		ID:           event.ID,
		Category:     string(event.Category),
		Timestamp:    event.Timestamp.UTC().Format(time.RFC3339Nano),
		UserID:       event.UserID.String(),
		Action:       event.Action,
		Amount:       event.Amount,
		Counterparty: event.Counterparty,
		RecordID:     event.RecordID,
		Digest:       event.Digest,
		Decision:     event.Decision,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
		ActorID:      event.ActorID,
	}
}
