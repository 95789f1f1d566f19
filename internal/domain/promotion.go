package domain

import (
	"time"

	"perfume-store/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromotionType selects how a promotion picks its target products.
type PromotionType string

const (
	PromotionTypeBrand    PromotionType = "brand"
	PromotionTypeCategory PromotionType = "category"
	PromotionTypeManual   PromotionType = "manual"
	PromotionTypeAll      PromotionType = "all"
)

// Valid reports whether t is a known promotion type.
func (t PromotionType) Valid() bool {
	switch t {
	case PromotionTypeBrand, PromotionTypeCategory, PromotionTypeManual, PromotionTypeAll:
		return true
	}
	return false
}

// Promotion is a named discount applied in bulk to a set of products.
type Promotion struct {
	ID                 uuid.UUID           `json:"id" db:"id"`
	Title              string              `json:"title" db:"title"`
	Description        string              `json:"description" db:"description"`
	Type               PromotionType       `json:"type" db:"promotion_type"`
	Slot               string              `json:"slot" db:"slot"`
	Priority           int                 `json:"priority" db:"priority"`
	Active             bool                `json:"active" db:"active"`
	StartAt            *time.Time          `json:"start_at,omitempty" db:"start_at"`
	EndAt              *time.Time          `json:"end_at,omitempty" db:"end_at"`
	DiscountPercentage int                 `json:"discount_percentage" db:"discount_percentage"`
	DiscountPrice      decimal.NullDecimal `json:"discount_price" db:"discount_price"`
	BrandID            *uuid.UUID          `json:"brand_id,omitempty" db:"brand_id"`
	CategoryID         *uuid.UUID          `json:"category_id,omitempty" db:"category_id"`
	ProductIDs         []uuid.UUID         `json:"product_ids,omitempty"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// DiscountAt returns the discount fields the promotion writes onto its targets.
// An unset start means the discount starts at now.
func (p *Promotion) DiscountAt(now time.Time) pricing.Discount {
	start := now
	if p.StartAt != nil {
		start = *p.StartAt
	}
	d := pricing.Discount{
		Percentage: p.DiscountPercentage,
		Price:      p.DiscountPrice,
		StartAt:    &start,
	}
	if p.EndAt != nil {
		end := *p.EndAt
		d.EndAt = &end
	}
	return d
}

// Validate checks the promotion definition.
func (p *Promotion) Validate() error {
	if p.Title == "" {
		return NewValidationError("promotion", "title", "is required")
	}
	if !p.Type.Valid() {
		return NewValidationError("promotion", "type", "must be one of brand, category, manual, all")
	}
	if p.DiscountPercentage < 0 || p.DiscountPercentage > 100 {
		return NewValidationError("promotion", "discount_percentage", "must be between 0 and 100")
	}
	if p.DiscountPrice.Valid && !p.DiscountPrice.Decimal.IsPositive() {
		return NewValidationError("promotion", "discount_price", "must be positive")
	}
	if p.DiscountPercentage == 0 && !p.DiscountPrice.Valid {
		return NewValidationError("promotion", "discount_percentage", "either a percentage or a fixed price is required")
	}
	if p.StartAt != nil && p.EndAt != nil && p.EndAt.Before(*p.StartAt) {
		return NewValidationError("promotion", "end_at", "must not be before start_at")
	}
	switch p.Type {
	case PromotionTypeBrand:
		if p.BrandID == nil {
			return NewValidationError("promotion", "brand_id", "is required for brand promotions")
		}
	case PromotionTypeCategory:
		if p.CategoryID == nil {
			return NewValidationError("promotion", "category_id", "is required for category promotions")
		}
	}
	return nil
}

// ApplyResult reports what a bulk apply changed.
type ApplyResult struct {
	PromotionID uuid.UUID   `json:"promotion_id"`
	Applied     int         `json:"applied"`
	Skipped     []uuid.UUID `json:"skipped,omitempty"`
}

// ClearResult reports how many products a clear reset.
type ClearResult struct {
	PromotionID uuid.UUID `json:"promotion_id"`
	Cleared     int       `json:"cleared"`
}
