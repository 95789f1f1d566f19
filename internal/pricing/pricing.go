// Package pricing resolves the price a customer pays for a product or a variant
// at a given moment, from its base price and discount fields.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount holds the discount fields shared by products, variants and promotions.
// A zero Discount means "no discount".
type Discount struct {
	Percentage int                 `json:"discount_percentage"`
	Price      decimal.NullDecimal `json:"discount_price"`
	StartAt    *time.Time          `json:"discount_start_at,omitempty"`
	EndAt      *time.Time          `json:"discount_end_at,omitempty"`
}

// HasValue reports whether the discount carries a non-zero fixed price or percentage,
// ignoring its window.
func (d Discount) HasValue() bool {
	return d.hasFixedPrice() || d.Percentage > 0
}

// ActiveAt reports whether asOf falls inside the discount window. Open ends are unbounded.
func (d Discount) ActiveAt(asOf time.Time) bool {
	if d.StartAt != nil && asOf.Before(*d.StartAt) {
		return false
	}
	if d.EndAt != nil && asOf.After(*d.EndAt) {
		return false
	}
	return true
}

// PercentageOnly returns a copy of the discount without its fixed price.
func (d Discount) PercentageOnly() Discount {
	d.Price = decimal.NullDecimal{}
	return d
}

func (d Discount) hasFixedPrice() bool {
	return d.Price.Valid && d.Price.Decimal.IsPositive()
}

// EffectivePrice returns the price in force at asOf. A fixed discount price wins over
// the percentage; outside the window the base price applies.
func EffectivePrice(base decimal.Decimal, d Discount, asOf time.Time) decimal.Decimal {
	if !d.ActiveAt(asOf) {
		return base
	}
	if d.hasFixedPrice() {
		return d.Price.Decimal
	}
	if d.Percentage > 0 {
		return ApplyPercentage(base, d.Percentage)
	}
	return base
}

// IsOnSale reports whether a non-zero discount is in force at asOf.
func IsOnSale(d Discount, asOf time.Time) bool {
	return d.HasValue() && d.ActiveAt(asOf)
}

// ApplyPercentage returns base reduced by pct percent, rounded to kopecks.
func ApplyPercentage(base decimal.Decimal, pct int) decimal.Decimal {
	if pct <= 0 {
		return base
	}
	if pct >= 100 {
		return decimal.Zero
	}
	return base.Mul(decimal.NewFromInt(int64(100 - pct))).Div(hundred).Round(2)
}

// VariantPrice resolves a variant's price. The variant's own discount is used when it
// has one; otherwise the parent's discount applies. The two are never combined.
func VariantPrice(price decimal.Decimal, local, parent Discount, asOf time.Time) decimal.Decimal {
	if local.HasValue() {
		return EffectivePrice(price, local, asOf)
	}
	return EffectivePrice(price, parent, asOf)
}

// DisplayPercent is the percentage shown to customers. With a fixed discount price it is
// derived from the price difference; otherwise it is the stored percentage.
// It must not be used to compute prices.
func DisplayPercent(base decimal.Decimal, d Discount) int {
	if !d.hasFixedPrice() || !base.IsPositive() {
		return d.Percentage
	}
	pct := base.Sub(d.Price.Decimal).Div(base).Mul(hundred).Round(0).IntPart()
	if pct < 0 {
		return 0
	}
	return int(pct)
}
