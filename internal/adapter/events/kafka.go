// Package events mirrors audit records onto a Kafka topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/arturoeanton/godsplan/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAuditWriter implements middleware.AuditWriter using segmentio/kafka-go.
type KafkaAuditWriter struct {
	writer messageWriter
	topic  string
	nowF   func() time.Time
}

// NewKafkaAuditWriter returns nil when brokers or topic are empty, which
// callers treat as "Kafka disabled". Call Close when shutting down.
func NewKafkaAuditWriter(brokers []string, topic string) *KafkaAuditWriter {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaAuditWriter{writer: writer, topic: topic, nowF: time.Now}
}

// WriteAudit publishes the record keyed by user id so a user's events stay ordered.
func (p *KafkaAuditWriter) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	if p == nil || p.writer == nil {
		return nil
	}
	rec := domain.AuditLog{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  p.nowF().UTC(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("kafka audit %s: %w", p.topic, err)
	}
	return nil
}

// Close closes the Kafka writer. Safe to call on a nil writer.
func (p *KafkaAuditWriter) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
