// Package notify delivers store events to downstream consumers (customer e-mails,
// back-office dashboards). Delivery is fire-and-forget: a failed publish is logged and
// never fails the business operation that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType names a store event
type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventOrderPaid        EventType = "order.paid"
	EventOrderShipped     EventType = "order.shipped"
	EventOrderDelivered   EventType = "order.delivered"
	EventOrderCancelled   EventType = "order.cancelled"
	EventPromotionApplied EventType = "promotion.applied"
	EventPromotionCleared EventType = "promotion.cleared"
)

const (
	channelPrefix = "store:events:"
	// AllChannel receives every event regardless of type.
	AllChannel = channelPrefix + "all"
)

// Channel returns the pub/sub channel for one event type.
func Channel(t EventType) string {
	return channelPrefix + string(t)
}

// Event is the payload published for every notification
type Event struct {
	Type       EventType      `json:"type"`
	OrderID    *uuid.UUID     `json:"order_id,omitempty"`
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Notifier publishes events. Implementations must not block the caller on slow consumers.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// RedisNotifier publishes events to redis pub/sub, once on the per-type channel and once
// on AllChannel.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier creates a notifier backed by the given redis client
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

func (n *RedisNotifier) Notify(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := n.publish(ctx, event); err != nil {
		n.logger.Warn("Failed to publish event",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (n *RedisNotifier) publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := n.client.Publish(ctx, Channel(event.Type), body).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := n.client.Publish(ctx, AllChannel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}

// LogNotifier only logs events. Used when redis is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that writes events to the log
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) {
	fields := []zap.Field{zap.String("type", string(event.Type))}
	if event.OrderID != nil {
		fields = append(fields, zap.String("order_id", event.OrderID.String()))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.String()))
	}
	n.logger.Info("Store event", fields...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// OrderEvent builds an event about an order
func OrderEvent(t EventType, orderID, userID uuid.UUID, payload map[string]any) Event {
	return Event{
		Type:       t,
		OrderID:    &orderID,
		UserID:     &userID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
