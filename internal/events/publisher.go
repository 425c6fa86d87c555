package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"imageConverter/internal/jobs"
)

const DefaultTopic = "image.jobs"

// Event is emitted on every job status transition.
type Event struct {
	JobID  string      `json:"jobId"`
	Status jobs.Status `json:"status"`
	At     time.Time   `json:"at"`
	Error  string      `json:"error,omitempty"`
}

func FromJob(job *jobs.Job) Event {
	return Event{
		JobID:  job.ID,
		Status: job.Status,
		At:     job.UpdatedAt,
		Error:  job.Error,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return NewPublisherFromProducer(p, topic), nil
}

func NewPublisherFromProducer(p sarama.SyncProducer, topic string) Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafkaPublisher{producer: p, topic: topic}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.JobID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// Nop discards events; used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
