package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Audit actions
const (
	AuditOrderStatus     = "order_status_update"
	AuditOrderEdit       = "order_edit"
	AuditOrderShip       = "order_ship"
	AuditPromotionCreate = "promotion_create"
	AuditPromotionUpdate = "promotion_update"
	AuditPromotionApply  = "promotion_apply"
	AuditPromotionClear  = "promotion_clear"
	AuditDiscountSet     = "discount_set"
	AuditDiscountClear   = "discount_clear"
	AuditLoyaltyAdjust   = "loyalty_adjust"
	AuditDefaultVariant  = "variant_set_default"
)

// AuditEntry records an administrative action.
type AuditEntry struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	ObjectType string          `json:"object_type" db:"object_type"`
	ObjectID   string          `json:"object_id" db:"object_id"`
	Extra      json.RawMessage `json:"extra,omitempty" db:"extra"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// DashboardSummary aggregates order figures for administrators.
type DashboardSummary struct {
	Revenue        decimal.Decimal     `json:"revenue"`
	OrderCount     int                 `json:"order_count"`
	CountsByStatus map[OrderStatus]int `json:"counts_by_status"`
}
