package domain

import (
	"fmt"
	"time"

	"perfume-store/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes perfumes from pigments. Both share the Product type; the kind only
// changes how sizes are measured and labelled.
type Kind string

const (
	KindPerfume Kind = "perfume"
	KindPigment Kind = "pigment"
)

// Valid reports whether k is a known product kind.
func (k Kind) Valid() bool {
	return k == KindPerfume || k == KindPigment
}

// SizeUnit is the unit of the kind's size field.
func (k Kind) SizeUnit() string {
	if k == KindPigment {
		return "g"
	}
	return "ml"
}

// SizeLabel formats a size for display, e.g. "50 ml" or "10 g".
func (k Kind) SizeLabel(size int) string {
	return fmt.Sprintf("%d %s", size, k.SizeUnit())
}

// Brand represents a product brand
type Brand struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Country     string    `json:"country" db:"country"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Kind        Kind      `json:"kind" db:"kind"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Product represents a perfume or pigment in the catalog.
// Size is the legacy volume (ml) or weight (g) the product was created with.
type Product struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	Kind           Kind             `json:"kind" db:"kind"`
	Name           string           `json:"name" db:"name"`
	Slug           string           `json:"slug" db:"slug"`
	SKU            string           `json:"sku" db:"sku"`
	Description    string           `json:"description" db:"description"`
	BrandID        uuid.UUID        `json:"brand_id" db:"brand_id"`
	CategoryID     uuid.UUID        `json:"category_id" db:"category_id"`
	BasePrice      decimal.Decimal  `json:"base_price" db:"base_price"`
	Size           int              `json:"size" db:"size"`
	Discount       pricing.Discount `json:"discount"`
	DiscountSource *uuid.UUID       `json:"discount_source,omitempty" db:"discount_source"`
	StockQuantity  int              `json:"stock_quantity" db:"stock_quantity"`
	InStock        bool             `json:"in_stock" db:"in_stock"`
	Featured       bool             `json:"featured" db:"featured"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`

	Variants []Variant `json:"variants,omitempty"`
}

// Variant is a size/weight option of a product with its own price and stock.
type Variant struct {
	ID                 uuid.UUID           `json:"id" db:"id"`
	ProductID          uuid.UUID           `json:"product_id" db:"product_id"`
	Size               int                 `json:"size" db:"size"`
	Price              decimal.Decimal     `json:"price" db:"price"`
	DiscountPercentage int                 `json:"discount_percentage" db:"discount_percentage"`
	DiscountPrice      decimal.NullDecimal `json:"discount_price" db:"discount_price"`
	StockQuantity      int                 `json:"stock_quantity" db:"stock_quantity"`
	InStock            bool                `json:"in_stock" db:"in_stock"`
	IsDefault          bool                `json:"is_default" db:"is_default"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
}

// LocalDiscount returns the variant's own discount. Variant discounts have no window.
func (v *Variant) LocalDiscount() pricing.Discount {
	return pricing.Discount{Percentage: v.DiscountPercentage, Price: v.DiscountPrice}
}

// Priced is implemented by anything a customer can put in a cart.
type Priced interface {
	ResolvePrice(asOf time.Time) decimal.Decimal
	ResolveStock() int
}

// ResolvePrice returns the product's own effective price. Products with variants are
// sold through their variants; see VariantPrice and PriceRange.
func (p *Product) ResolvePrice(asOf time.Time) decimal.Decimal {
	if len(p.Variants) > 0 {
		if def := p.DefaultVariant(); def != nil {
			return p.VariantPrice(def, asOf)
		}
	}
	return pricing.EffectivePrice(p.BasePrice, p.Discount, asOf)
}

// ResolveStock returns the sellable stock: the sum over variants when present.
func (p *Product) ResolveStock() int {
	if len(p.Variants) == 0 {
		return p.StockQuantity
	}
	total := 0
	for _, v := range p.Variants {
		total += v.StockQuantity
	}
	return total
}

// IsOnSale reports whether the product's own discount is in force.
func (p *Product) IsOnSale(asOf time.Time) bool {
	return pricing.IsOnSale(p.Discount, asOf)
}

// DiscountPercentDisplay is the percentage to show on the storefront.
func (p *Product) DiscountPercentDisplay() int {
	return pricing.DisplayPercent(p.BasePrice, p.Discount)
}

// VariantPrice resolves v's price. Without a local discount the parent's discount applies:
// its percentage to any variant, its fixed price only to the default variant, which
// mirrors the product's legacy size.
func (p *Product) VariantPrice(v *Variant, asOf time.Time) decimal.Decimal {
	parent := p.Discount
	if !v.IsDefault {
		parent = parent.PercentageOnly()
	}
	return pricing.VariantPrice(v.Price, v.LocalDiscount(), parent, asOf)
}

// DefaultVariant returns the variant flagged default, or nil.
func (p *Product) DefaultVariant() *Variant {
	for i := range p.Variants {
		if p.Variants[i].IsDefault {
			return &p.Variants[i]
		}
	}
	return nil
}

// FindVariant returns the variant with the given id, or nil.
func (p *Product) FindVariant(id uuid.UUID) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// PriceRange returns the lowest and highest resolved price over in-stock variants.
// Without variants both equal the product's own price. ok is false when the product has
// variants but none is in stock.
func (p *Product) PriceRange(asOf time.Time) (min, max decimal.Decimal, ok bool) {
	if len(p.Variants) == 0 {
		price := pricing.EffectivePrice(p.BasePrice, p.Discount, asOf)
		return price, price, true
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		if !v.InStock || v.StockQuantity <= 0 {
			continue
		}
		price := p.VariantPrice(v, asOf)
		if !ok {
			min, max, ok = price, price, true
			continue
		}
		if price.LessThan(min) {
			min = price
		}
		if price.GreaterThan(max) {
			max = price
		}
	}
	return min, max, ok
}

// ClearDiscount resets the discount fields to neutral and drops the promotion link.
func (p *Product) ClearDiscount() {
	p.Discount = pricing.Discount{}
	p.DiscountSource = nil
}

// ValidateDiscount checks a discount against the base price it would apply to.
func ValidateDiscount(entity string, base decimal.Decimal, d pricing.Discount) error {
	if d.Percentage < 0 || d.Percentage > 100 {
		return NewValidationError(entity, "discount_percentage", "must be between 0 and 100")
	}
	if d.Price.Valid {
		if d.Price.Decimal.IsNegative() {
			return NewValidationError(entity, "discount_price", "must not be negative")
		}
		if d.Price.Decimal.GreaterThanOrEqual(base) {
			return NewValidationError(entity, "discount_price", fmt.Sprintf("must be lower than the base price %s", base.StringFixed(2)))
		}
	}
	if d.StartAt != nil && d.EndAt != nil && d.EndAt.Before(*d.StartAt) {
		return NewValidationError(entity, "discount_end_at", "must not be before discount_start_at")
	}
	return nil
}
