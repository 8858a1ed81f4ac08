package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-risk/domain"
)

type MockWriter struct {
	Messages []kafka.Message
	Err      error
	Closed   bool
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockWriter) Close() error {
	m.Closed = true
	return nil
}

func TestKafkaPublisher_PublishRunCompleted(t *testing.T) {
	w := &MockWriter{}
	p := newKafkaPublisher(w, "loan-risk.runs")
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return now }

	run := domain.SimulationRun{
		ID:             "abc",
		NumSimulations: 2,
		Summary: domain.SummaryStatistics{
			NumSimulations: 2,
			MeanLoss:       300,
			Losses:         []float64{0, 600},
		},
	}
	require.NoError(t, p.PublishRunCompleted(context.Background(), run))
	require.Len(t, w.Messages, 1)

	msg := w.Messages[0]
	assert.Equal(t, "abc", string(msg.Key))
	assert.NotContains(t, string(msg.Value), "losses")

	var ev RunCompletedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, TypeRunCompleted, ev.Type)
	assert.True(t, now.Equal(ev.OccurredAt))
	assert.Equal(t, 300.0, ev.Run.Summary.MeanLoss)

	// the caller's run keeps its sample
	assert.Len(t, run.Summary.Losses, 2)

	require.NoError(t, p.Close())
	assert.True(t, w.Closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &MockWriter{Err: errors.New("broker down")}
	p := newKafkaPublisher(w, "loan-risk.runs")

	err := p.PublishRunCompleted(context.Background(), domain.SimulationRun{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Contains(t, err.Error(), "loan-risk.runs")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishRunCompleted(context.Background(), domain.SimulationRun{}))
	assert.NoError(t, p.Close())
}
