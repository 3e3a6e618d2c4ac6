// Package events publishes job lifecycle events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Type names a lifecycle event.
type Type string

const (
	JobCreated       Type = "job.created"
	JobAssigned      Type = "job.assigned"
	JobClaimed       Type = "job.claimed"
	JobStarted       Type = "job.started"
	JobCompleted     Type = "job.completed"
	JobStatusChanged Type = "job.status_changed"
)

// Event is the wire shape of a lifecycle event.
type Event struct {
	Type     Type      `json:"type"`
	JobID    string    `json:"job_id"`
	DriverID string    `json:"driver_id,omitempty"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

// Publisher sends lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by job ID, so events of a
// job stay ordered within its partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaPublisher{writer: w}
}

// Publish writes one event.
func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.JobID), Value: b})
}

// Close flushes and closes the writer.
func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
