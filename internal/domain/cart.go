package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is a user's shopping cart
type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// CartLine is one product (or product variant) in a cart.
type CartLine struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CartID    uuid.UUID  `json:"cart_id" db:"cart_id"`
	ProductID uuid.UUID  `json:"product_id" db:"product_id"`
	Kind      Kind       `json:"kind" db:"kind"`
	VariantID *uuid.UUID `json:"variant_id,omitempty" db:"variant_id"`
	Quantity  int        `json:"quantity" db:"quantity"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// SameItem reports whether two lines refer to the same product, kind and variant.
func (l *CartLine) SameItem(productID uuid.UUID, kind Kind, variantID *uuid.UUID) bool {
	if l.ProductID != productID || l.Kind != kind {
		return false
	}
	if l.VariantID == nil || variantID == nil {
		return l.VariantID == nil && variantID == nil
	}
	return *l.VariantID == *variantID
}

// PricedLine is a cart line with its currently resolved price.
type PricedLine struct {
	CartLine
	ProductName  string          `json:"product_name"`
	VariantLabel string          `json:"variant_label,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	InStock      bool            `json:"in_stock"`
}

// CartView is the cart as shown to the customer.
type CartView struct {
	CartID    uuid.UUID       `json:"cart_id"`
	Lines     []PricedLine    `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
