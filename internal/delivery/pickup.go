package delivery

import (
	"context"
	"strings"

	"perfume-store/internal/config"
	"perfume-store/internal/domain"

	"github.com/shopspring/decimal"
)

// PickupName is the delivery method for collecting an order at the store.
const PickupName = "pickup"

// Pickup is the free in-store pickup option.
type Pickup struct {
	cfg config.DeliveryConfig
}

// NewPickup creates the pickup provider
func NewPickup(cfg config.DeliveryConfig) *Pickup {
	return &Pickup{cfg: cfg}
}

func (p *Pickup) Name() string { return PickupName }

func (p *Pickup) Calculate(_ context.Context, _ Quote) ([]Option, error) {
	service := "Store pickup"
	if p.cfg.PickupAddress != "" {
		service += ", " + p.cfg.PickupAddress
	}
	return []Option{{
		Provider:  PickupName,
		Service:   service,
		Cost:      decimal.Zero,
		PeriodMin: 0,
		PeriodMax: 1,
		Currency:  "RUB",
	}}, nil
}

// CreateShipment returns the pickup code the customer shows at the counter.
func (p *Pickup) CreateShipment(_ context.Context, order *domain.Order) (string, error) {
	return "PICKUP-" + strings.ToUpper(order.ID.String()[:8]), nil
}
