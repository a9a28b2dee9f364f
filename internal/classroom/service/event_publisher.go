package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classqa/internal/classroom/model"
	"classqa/internal/common/mq"

	"github.com/google/uuid"
)

// EventPublisher announces committed question lifecycle transitions.
type EventPublisher interface {
	Publish(ctx context.Context, event model.QuestionEvent) error
}

// QuestionEventPublisher publishes question events to a message queue topic.
// Events of one question share a partition key so consumers see them in order.
type QuestionEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewQuestionEventPublisher creates a new event publisher.
func NewQuestionEventPublisher(producer mq.Producer, topic string) *QuestionEventPublisher {
	return &QuestionEventPublisher{producer: producer, topic: topic}
}

// Publish sends event to the configured topic.
func (p *QuestionEventPublisher) Publish(ctx context.Context, event model.QuestionEvent) error {
	if p == nil || p.producer == nil {
		return errors.New("event publisher is nil")
	}
	if p.topic == "" {
		return errors.New("event topic is empty")
	}
	if event.QuestionID <= 0 {
		return errors.New("questionID is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal question event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = fmt.Sprintf("question-%d", event.QuestionID)
	message.SetHeader("event_id", uuid.NewString())
	message.SetHeader("event_type", string(event.EventType))
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return fmt.Errorf("publish question event failed: %w", err)
	}
	return nil
}
