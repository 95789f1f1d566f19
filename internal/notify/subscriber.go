package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handler consumes one event. Returned errors are logged; the subscriber keeps running.
type Handler func(ctx context.Context, event Event) error

// Subscriber reads AllChannel and dispatches each event to a handler.
type Subscriber struct {
	client  *redis.Client
	handler Handler
	logger  *zap.Logger
}

// NewSubscriber creates a subscriber for the store event stream
func NewSubscriber(client *redis.Client, handler Handler, logger *zap.Logger) *Subscriber {
	return &Subscriber{client: client, handler: handler, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription channel closes.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, AllChannel)
	defer pubsub.Close()

	// confirm the subscription before reading messages
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	s.logger.Info("Event subscriber started", zap.String("channel", AllChannel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Event subscriber stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.dispatch(ctx, msg)
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, msg *redis.Message) {
	var event Event
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		s.logger.Warn("Dropping malformed event",
			zap.String("channel", msg.Channel),
			zap.Error(err),
		)
		return
	}

	if err := s.handler(ctx, event); err != nil {
		s.logger.Error("Event handler failed",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

// CustomerMessages returns a handler that renders the customer-facing message for
// order events and logs it. Mail delivery is handled by a separate service.
func CustomerMessages(logger *zap.Logger) Handler {
	return func(_ context.Context, event Event) error {
		subject, ok := customerSubjects[event.Type]
		if !ok {
			return nil
		}

		fields := []zap.Field{
			zap.String("type", string(event.Type)),
			zap.String("subject", subject),
		}
		if event.OrderID != nil {
			fields = append(fields, zap.String("order_id", event.OrderID.String()))
		}
		if event.UserID != nil {
			fields = append(fields, zap.String("user_id", event.UserID.String()))
		}
		if tracking, ok := event.Payload["tracking_number"].(string); ok && tracking != "" {
			fields = append(fields, zap.String("tracking_number", tracking))
		}

		logger.Info("Customer notification", fields...)
		return nil
	}
}

var customerSubjects = map[EventType]string{
	EventOrderCreated:   "Your order has been placed",
	EventOrderPaid:      "Payment received",
	EventOrderShipped:   "Your order is on its way",
	EventOrderDelivered: "Your order has been delivered",
	EventOrderCancelled: "Your order has been cancelled",
}
