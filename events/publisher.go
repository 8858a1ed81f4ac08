// Package events announces completed simulation runs to other systems.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"loan-risk/domain"
)

// TypeRunCompleted is the event type of a finished run.
const TypeRunCompleted = "run.completed"

// Publisher is implemented by every event sink.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, run domain.SimulationRun) error
	Close() error
}

// RunCompletedEvent is the message payload. The raw loss sample is never sent.
type RunCompletedEvent struct {
	Type       string               `json:"type"`
	OccurredAt time.Time            `json:"occurred_at"`
	Run        domain.SimulationRun `json:"run"`
}

func NewRunCompletedEvent(run domain.SimulationRun, now time.Time) RunCompletedEvent {
	run.Summary = run.Summary.WithoutLosses()
	return RunCompletedEvent{
		Type:       TypeRunCompleted,
		OccurredAt: now.UTC(),
		Run:        run,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per run, keyed by run ID so every event of
// a run lands in the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}
	return newKafkaPublisher(w, topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, now: time.Now}
}

func (p *KafkaPublisher) PublishRunCompleted(ctx context.Context, run domain.SimulationRun) error {
	payload, err := json.Marshal(NewRunCompletedEvent(run, p.now()))
	if err != nil {
		return errors.Wrapf(err, "marshal %s event for run %s", TypeRunCompleted, run.ID)
	}

	msg := kafka.Message{
		Key:   []byte(run.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeRunCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish run %s to %s", run.ID, p.topic)
	}

	log.WithFields(log.Fields{
		"run_id": run.ID,
		"topic":  p.topic,
	}).Debug("run event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRunCompleted(context.Context, domain.SimulationRun) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
