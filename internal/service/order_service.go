package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"perfume-store/internal/config"
	"perfume-store/internal/delivery"
	"perfume-store/internal/domain"
	"perfume-store/internal/notify"
	"perfume-store/internal/payment"
	"perfume-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatusUpdate is an administrative status change. ExpectedUpdatedAt, when set, must
// match the stored updated_at or the update is rejected as stale.
type StatusUpdate struct {
	OrderID           uuid.UUID
	Status            domain.OrderStatus
	ExpectedUpdatedAt *time.Time
	Actor             *uuid.UUID
}

// OrderEdit changes the administrative fields of an order. Nil fields are left alone.
type OrderEdit struct {
	OrderID           uuid.UUID
	DeliveryCost      *decimal.Decimal
	TrackingNumber    *string
	AdminNotes        *string
	ExpectedUpdatedAt *time.Time
	Actor             *uuid.UUID
}

// ShipRequest hands an order to a delivery provider
type ShipRequest struct {
	OrderID  uuid.UUID
	Provider string
	Actor    *uuid.UUID
}

// OrderService defines the interface for order settlement
type OrderService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// GetForUser returns the order only when it belongs to userID.
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error)

	// UpdateStatus moves the order along the status graph and applies loyalty effects.
	UpdateStatus(ctx context.Context, update StatusUpdate) (*domain.Order, error)
	// MarkPaid records a confirmed payment. Orders already paid or beyond are left as is.
	MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string, paidAt time.Time) (*domain.Order, error)
	Ship(ctx context.Context, req ShipRequest) (*domain.Order, error)
	Save(ctx context.Context, edit OrderEdit) (*domain.Order, error)
	// StartPayment creates a payment with the order's provider and stores its id.
	StartPayment(ctx context.Context, userID, orderID uuid.UUID) (*payment.Intent, error)

	Dashboard(ctx context.Context) (*domain.DashboardSummary, error)
}

type orderService struct {
	store      repository.Store
	ledger     ledger
	payments   *payment.Registry
	deliveries *delivery.Registry
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	store repository.Store,
	loyalty config.LoyaltyConfig,
	payments *payment.Registry,
	deliveries *delivery.Registry,
	notifier notify.Notifier,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		store:      store,
		ledger:     ledger{cfg: loyalty, logger: logger},
		payments:   payments,
		deliveries: deliveries,
		notifier:   notifier,
		logger:     logger,
	}
}

func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.store.Orders().FindByID(ctx, id)
}

func (s *orderService) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListForUser(ctx context.Context, userID uuid.UUID, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	if status != nil && !status.Valid() {
		return nil, 0, domain.NewValidationError("order", "status", "unknown status")
	}
	orders, total, err := s.store.Orders().ListByUser(ctx, userID, status, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, update StatusUpdate) (*domain.Order, error) {
	if !update.Status.Valid() {
		return nil, domain.NewValidationError("order", "status", "unknown status")
	}

	var (
		order   *domain.Order
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, update.OrderID)
		if err != nil {
			return err
		}
		if err := checkFresh(o, update.ExpectedUpdatedAt); err != nil {
			return err
		}

		from := o.Status
		if changed, err = s.transition(ctx, tx, o, update.Status); err != nil {
			return err
		}
		order = o
		return recordAudit(ctx, tx, update.Actor, domain.AuditOrderStatus, "order", o.ID.String(),
			map[string]string{"from": string(from), "to": string(update.Status)})
	})
	if err != nil {
		var terr *domain.TransitionError
		if errors.As(err, &terr) {
			s.logger.Warn("Rejected order status transition",
				zap.String("order_id", update.OrderID.String()),
				zap.String("from", string(terr.From)),
				zap.String("to", string(terr.To)),
			)
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if changed {
		s.announce(ctx, order)
	}
	return order, nil
}

func (s *orderService) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string, paidAt time.Time) (*domain.Order, error) {
	var (
		order   *domain.Order
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		order = o
		if o.Status.IsPaidOrLater() {
			return nil
		}

		if paymentID != "" {
			o.PaymentID = paymentID
		}
		if !paidAt.IsZero() {
			o.StampStatusTime(domain.OrderStatusPaid, paidAt.UTC())
		}
		changed, err = s.transition(ctx, tx, o, domain.OrderStatusPaid)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	if changed {
		s.logger.Info("Order paid",
			zap.String("order_id", order.ID.String()),
			zap.String("payment_id", order.PaymentID),
		)
		s.announce(ctx, order)
	}
	return order, nil
}

func (s *orderService) Ship(ctx context.Context, req ShipRequest) (*domain.Order, error) {
	provider, err := s.deliveries.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	current, err := s.store.Orders().FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.OrderStatusShipped {
		return nil, domain.NewValidationError("order", "status", "order is already shipped")
	}
	if err := domain.CheckTransition(current.Status, domain.OrderStatusShipped); err != nil {
		return nil, err
	}

	tracking, err := provider.CreateShipment(ctx, current)
	if err != nil {
		s.logger.Error("Delivery provider failed to create shipment",
			zap.String("order_id", req.OrderID.String()),
			zap.String("provider", req.Provider),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create shipment: %w: %v", domain.ErrProvider, err)
	}

	var (
		order   *domain.Order
		changed bool
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		o.TrackingNumber = tracking
		if changed, err = s.transition(ctx, tx, o, domain.OrderStatusShipped); err != nil {
			return err
		}
		order = o
		return recordAudit(ctx, tx, req.Actor, domain.AuditOrderShip, "order", o.ID.String(),
			map[string]string{"provider": req.Provider, "tracking_number": tracking})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ship order: %w", err)
	}

	if changed {
		s.announce(ctx, order)
	}
	return order, nil
}

func (s *orderService) Save(ctx context.Context, edit OrderEdit) (*domain.Order, error) {
	if edit.DeliveryCost != nil && edit.DeliveryCost.IsNegative() {
		return nil, domain.NewValidationError("order", "delivery_cost", "must not be negative")
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, edit.OrderID)
		if err != nil {
			return err
		}
		if err := checkFresh(o, edit.ExpectedUpdatedAt); err != nil {
			return err
		}

		if edit.DeliveryCost != nil {
			o.DeliveryCost = edit.DeliveryCost.Round(2)
		}
		if edit.TrackingNumber != nil {
			o.TrackingNumber = *edit.TrackingNumber
		}
		if edit.AdminNotes != nil {
			o.AdminNotes = *edit.AdminNotes
		}
		o.RecomputeTotal()
		o.UpdatedAt = now()
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		order = o
		return recordAudit(ctx, tx, edit.Actor, domain.AuditOrderEdit, "order", o.ID.String(),
			map[string]string{"total": o.Total.StringFixed(2)})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	return order, nil
}

func (s *orderService) StartPayment(ctx context.Context, userID, orderID uuid.UUID) (*payment.Intent, error) {
	order, err := s.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, domain.NewValidationError("order", "status", "only pending orders can be paid")
	}
	return createPayment(ctx, s.store, s.payments, order)
}

func (s *orderService) Dashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	summary, err := s.store.Orders().Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	return summary, nil
}

// transition moves o to status inside tx: checks the status graph, stamps the status
// time, recomputes the total, saves, and applies loyalty effects. Re-saving the current
// status saves the order without any loyalty effect and reports changed == false.
func (s *orderService) transition(ctx context.Context, tx repository.Store, o *domain.Order, status domain.OrderStatus) (changed bool, err error) {
	if err := domain.CheckTransition(o.Status, status); err != nil {
		return false, err
	}

	ts := now()
	changed = o.Status != status
	o.Status = status
	if changed {
		o.StampStatusTime(status, ts)
	}
	o.RecomputeTotal()
	o.UpdatedAt = ts

	if err := tx.Orders().Update(ctx, o); err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := s.ledger.settle(ctx, tx, o, ts); err != nil {
		return false, err
	}
	return true, nil
}

func (s *orderService) announce(ctx context.Context, order *domain.Order) {
	t, ok := statusEvents[order.Status]
	if !ok {
		return
	}
	payload := map[string]any{"status": string(order.Status), "total": order.Total.StringFixed(2)}
	if order.TrackingNumber != "" {
		payload["tracking_number"] = order.TrackingNumber
	}
	s.notifier.Notify(ctx, notify.OrderEvent(t, order.ID, order.UserID, payload))
}

var statusEvents = map[domain.OrderStatus]notify.EventType{
	domain.OrderStatusPaid:      notify.EventOrderPaid,
	domain.OrderStatusShipped:   notify.EventOrderShipped,
	domain.OrderStatusDelivered: notify.EventOrderDelivered,
	domain.OrderStatusCancelled: notify.EventOrderCancelled,
}

// checkFresh rejects an edit made against an outdated copy of the order.
func checkFresh(o *domain.Order, expected *time.Time) error {
	if expected == nil {
		return nil
	}
	if !o.UpdatedAt.Equal(expected.UTC().Truncate(time.Microsecond)) {
		return domain.ErrStaleOrder
	}
	return nil
}

// createPayment asks the order's provider for a payment and stores the payment id.
func createPayment(ctx context.Context, store repository.Store, payments *payment.Registry, order *domain.Order) (*payment.Intent, error) {
	provider, err := payments.Get(order.PaymentMethod)
	if err != nil {
		return nil, err
	}

	intent, err := provider.CreatePayment(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w: %v", domain.ErrProvider, err)
	}

	err = store.WithinTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		o.PaymentID = intent.PaymentID
		o.UpdatedAt = now()
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		order.PaymentID, order.UpdatedAt = o.PaymentID, o.UpdatedAt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store payment id: %w", err)
	}
	return intent, nil
}
