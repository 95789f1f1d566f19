package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// AllOrderStatuses lists statuses in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return len(orderStatusTransitions[s]) == 0
}

// IsPaidOrLater reports whether an order in status s has been paid for.
func (s OrderStatus) IsPaidOrLater() bool {
	switch s {
	case OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
// Re-saving the current status is allowed.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return from.Valid()
	}
	next, ok := orderStatusTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// CheckTransition returns a *TransitionError when from -> to is not allowed.
func CheckTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Order represents a customer order
type Order struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	UserID         uuid.UUID   `json:"user_id" db:"user_id"`
	Status         OrderStatus `json:"status" db:"status"`
	PaymentMethod  string      `json:"payment_method" db:"payment_method"`
	PaymentID      string      `json:"payment_id,omitempty" db:"payment_id"`
	DeliveryMethod string      `json:"delivery_method" db:"delivery_method"`
	TrackingNumber string      `json:"tracking_number,omitempty" db:"tracking_number"`

	RecipientName string `json:"recipient_name" db:"recipient_name"`
	Phone         string `json:"phone" db:"phone"`
	City          string `json:"city" db:"city"`
	Address       string `json:"address" db:"address"`
	PostalCode    string `json:"postal_code" db:"postal_code"`

	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	DeliveryCost    decimal.Decimal `json:"delivery_cost" db:"delivery_cost"`
	LoyaltyDiscount decimal.Decimal `json:"loyalty_discount" db:"loyalty_discount"`
	Total           decimal.Decimal `json:"total" db:"total"`

	LoyaltyPointsUsed   int  `json:"loyalty_points_used" db:"loyalty_points_used"`
	LoyaltyPointsEarned int  `json:"loyalty_points_earned" db:"loyalty_points_earned"`
	LoyaltyAwarded      bool `json:"loyalty_awarded" db:"loyalty_awarded"`
	LoyaltyRefunded     bool `json:"loyalty_refunded" db:"loyalty_refunded"`

	CustomerNotes string `json:"customer_notes,omitempty" db:"customer_notes"`
	AdminNotes    string `json:"admin_notes,omitempty" db:"admin_notes"`

	PaidAt      *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty" db:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`

	Items []OrderItem `json:"items,omitempty"`
}

// OrderItem is a snapshot of a purchased line, immune to later catalog edits.
type OrderItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID    uuid.UUID       `json:"product_id" db:"product_id"`
	Kind         Kind            `json:"kind" db:"kind"`
	VariantID    *uuid.UUID      `json:"variant_id,omitempty" db:"variant_id"`
	ProductName  string          `json:"product_name" db:"product_name"`
	ProductSKU   string          `json:"product_sku" db:"product_sku"`
	VariantLabel string          `json:"variant_label,omitempty" db:"variant_label"`
	Quantity     int             `json:"quantity" db:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price" db:"total_price"`
}

// RecomputeTotal sets Total = max(0, subtotal - loyalty discount + delivery cost).
func (o *Order) RecomputeTotal() {
	total := o.Subtotal.Sub(o.LoyaltyDiscount).Add(o.DeliveryCost)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total
}

// StampStatusTime records when the order entered status. Existing stamps are kept.
func (o *Order) StampStatusTime(status OrderStatus, at time.Time) {
	switch status {
	case OrderStatusPaid:
		if o.PaidAt == nil {
			o.PaidAt = &at
		}
	case OrderStatusShipped:
		if o.ShippedAt == nil {
			o.ShippedAt = &at
		}
	case OrderStatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &at
		}
	}
}

// PointsBase is the amount loyalty points are earned on.
func (o *Order) PointsBase() decimal.Decimal {
	base := o.Subtotal.Sub(o.LoyaltyDiscount)
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}

// ItemsSubtotal sums the item totals.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.TotalPrice)
	}
	return sum
}
