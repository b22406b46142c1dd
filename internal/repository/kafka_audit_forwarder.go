package repository

import (
	"context"
	"strconv"

	"PowerLedger/internal/domain/models"
	domrepo "PowerLedger/internal/domain/repository"
	pkgkafka "PowerLedger/pkg/kafka"
)

// KafkaAuditForwarder streams committed audit entries to a topic, keyed by
// entity so one entity's history stays on one partition.
type KafkaAuditForwarder struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.AuditForwarder = (*KafkaAuditForwarder)(nil)

func NewKafkaAuditForwarder(producer *pkgkafka.Producer, topic string) *KafkaAuditForwarder {
	return &KafkaAuditForwarder{producer: producer, topic: topic}
}

func (f *KafkaAuditForwarder) Forward(ctx context.Context, entries []*models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(entries))
	for i, e := range entries {
		msgs[i] = pkgkafka.Message{Key: auditKey(e), Value: e}
	}
	return f.producer.PublishBatch(ctx, f.topic, msgs)
}

func auditKey(e *models.AuditLog) []byte {
	key := e.EntityType
	if e.EntityID != nil {
		key += ":" + strconv.FormatInt(*e.EntityID, 10)
	}
	return []byte(key)
}
