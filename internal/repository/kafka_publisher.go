package repository

import (
	"context"
	"fmt"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	pkgkafka "RegimeLab/pkg/kafka"
)

// KafkaPublisher announces finished reports on a Kafka topic, keyed by run id.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaPublisher(producer *pkgkafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) PublishReport(ctx context.Context, r *models.Report) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	if err := p.producer.Publish(ctx, []byte(r.RunID), r); err != nil {
		return fmt.Errorf("publish report %s: %w", r.RunID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.ReportPublisher = (*KafkaPublisher)(nil)
