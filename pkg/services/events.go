package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventChannelRevisionProcessed is the Redis pub/sub channel announcing
// completed pipeline runs.
const EventChannelRevisionProcessed = "revision.processed"

// RevisionProcessedEvent is published after a run persists its revision.
// DiffID is null for unchanged and baseline revisions.
type RevisionProcessedEvent struct {
	SourceID       uuid.UUID  `json:"source_id"`
	RevisionID     uuid.UUID  `json:"revision_id"`
	ChangeDetected bool       `json:"change_detected"`
	DiffID         *uuid.UUID `json:"diff_id"`
}

// EventPublisher announces pipeline completions to downstream consumers.
type EventPublisher interface {
	// PublishRevisionProcessed emits the event. A no-op when eventing is
	// not configured.
	PublishRevisionProcessed(ctx context.Context, event RevisionProcessedEvent) error
}

type redisEventPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewEventPublisher creates a Redis-backed event publisher. A nil client
// disables publishing.
func NewEventPublisher(client *redis.Client, logger *zap.Logger) EventPublisher {
	return &redisEventPublisher{
		client: client,
		logger: logger.Named("events"),
	}
}

var _ EventPublisher = (*redisEventPublisher)(nil)

// PublishRevisionProcessed implements EventPublisher.
func (p *redisEventPublisher) PublishRevisionProcessed(ctx context.Context, event RevisionProcessedEvent) error {
	if p.client == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal revision processed event: %w", err)
	}

	if err := p.client.Publish(ctx, EventChannelRevisionProcessed, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish revision processed event: %w", err)
	}

	p.logger.Debug("published revision processed event",
		zap.String("source_id", event.SourceID.String()),
		zap.String("revision_id", event.RevisionID.String()),
		zap.Bool("change_detected", event.ChangeDetected))
	return nil
}
