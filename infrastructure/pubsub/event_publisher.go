package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub"

	"insight-hub/infrastructure/logger"
)

// FetchEvent is published after every live fan-out so downstream consumers
// (normalization, alerting) see what was fetched and what failed.
type FetchEvent struct {
	CompanyID  int64             `json:"company_id"`
	RangeStart string            `json:"range_start"`
	RangeEnd   string            `json:"range_end"`
	Platforms  []string          `json:"platforms"`
	Errors     map[string]string `json:"errors,omitempty"`
	FetchedAt  time.Time         `json:"fetched_at"`
}

type IEventPublisher interface {
	PublishFetch(ctx context.Context, event FetchEvent) error
}

// EventPublisher writes fetch events to a Pub/Sub topic. A nil client makes
// every publish a no-op so the service runs without the messaging backend.
type EventPublisher struct {
	client *pubsub.Client
	topic  string
}

func NewEventPublisher(client *pubsub.Client, topic string) IEventPublisher {
	return &EventPublisher{client: client, topic: topic}
}

func (p *EventPublisher) PublishFetch(ctx context.Context, event FetchEvent) error {
	if p.client == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	topic := p.client.Topic(p.topic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topic).Info("Topic doesn't exist - creating it")
		if _, err := p.client.CreateTopic(ctx, p.topic); err != nil {
			return err
		}
	}

	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return err
	}

	logger.GetLogger().
		WithField("server ID", serverID).
		WithField("company_id", event.CompanyID).
		Info("Fetch event published")
	return nil
}
