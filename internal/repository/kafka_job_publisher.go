package repository

import (
	"context"

	"AgriCast/internal/domain/models"
	domrepo "AgriCast/internal/domain/repository"
	pkgkafka "AgriCast/pkg/kafka"
)

// KafkaJobEventPublisher publishes job transitions keyed by job id, so every
// event of one job lands on the same partition in order.
type KafkaJobEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaJobEventPublisher(p *pkgkafka.Producer, topic string) *KafkaJobEventPublisher {
	return &KafkaJobEventPublisher{producer: p, topic: topic}
}

var _ domrepo.JobEventPublisher = (*KafkaJobEventPublisher)(nil)

func (p *KafkaJobEventPublisher) PublishJobEvent(ctx context.Context, ev models.JobEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.JobID), ev)
}

// KafkaLogPublisher adapts the producer to the log collector.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaLogPublisher(p *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: p}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
