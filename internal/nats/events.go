package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/mission-control/internal/model"
)

const (
	// StreamName is the name of the domain event stream.
	StreamName = "MISSION_EVENTS"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "mc"
)

// EventBus publishes and subscribes to domain events over JetStream.
type EventBus struct {
	client *Client
}

// NewEventBus creates a new event bus.
func NewEventBus(client *Client) *EventBus {
	return &EventBus{client: client}
}

// EnsureStream ensures the event stream exists with proper configuration.
func (b *EventBus) EnsureStream(ctx context.Context) error {
	js := b.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Mission Control domain events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event. Events without a
// conversation (task runs) publish under a "task" segment instead.
func EventSubject(event *model.Event) string {
	if event.ConversationID != "" {
		return fmt.Sprintf("%s.%s.conv.%s.%s", SubjectPrefix, event.TenantID, event.ConversationID, event.Type)
	}
	if event.TaskID != "" {
		return fmt.Sprintf("%s.%s.task.%s.%s", SubjectPrefix, event.TenantID, event.TaskID, event.Type)
	}
	return fmt.Sprintf("%s.%s.misc.%s", SubjectPrefix, event.TenantID, event.Type)
}

// ConversationFilter returns the filter subject for one conversation's events.
func ConversationFilter(tenantID, conversationID string) string {
	return fmt.Sprintf("%s.%s.conv.%s.>", SubjectPrefix, tenantID, conversationID)
}

// Publish publishes an event to the stream.
func (b *EventBus) Publish(ctx context.Context, event *model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := b.client.JetStream().Publish(ctx, EventSubject(event), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// SubscribeConversation delivers new events for one conversation to handler
// until the returned stop function is called or ctx is done.
func (b *EventBus) SubscribeConversation(ctx context.Context, tenantID, conversationID string, handler func(model.Event)) (func(), error) {
	js := b.client.JetStream()

	consumer, err := js.CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject: ConversationFilter(tenantID, conversationID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var event model.Event
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	return cc.Stop, nil
}
