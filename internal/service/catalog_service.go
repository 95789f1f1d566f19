package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/pricing"
	"perfume-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BrandInput is the payload for creating a brand
type BrandInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	Country     string `json:"country" validate:"max=100"`
}

// CategoryInput is the payload for creating a category
type CategoryInput struct {
	Name        string      `json:"name" validate:"required,max=255"`
	Description string      `json:"description"`
	Kind        domain.Kind `json:"kind" validate:"required,oneof=perfume pigment"`
}

// ProductInput is the payload for creating a product
type ProductInput struct {
	Kind          domain.Kind     `json:"kind" validate:"required,oneof=perfume pigment"`
	Name          string          `json:"name" validate:"required,max=255"`
	Slug          string          `json:"slug" validate:"max=255"`
	SKU           string          `json:"sku" validate:"max=100"`
	Description   string          `json:"description"`
	BrandID       uuid.UUID       `json:"brand_id" validate:"required"`
	CategoryID    uuid.UUID       `json:"category_id" validate:"required"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Size          int             `json:"size" validate:"gt=0"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	Featured      bool            `json:"featured"`
}

// VariantInput is the payload for adding a size/weight variant
type VariantInput struct {
	Size               int                 `json:"size" validate:"gt=0"`
	Price              decimal.Decimal     `json:"price"`
	DiscountPercentage int                 `json:"discount_percentage" validate:"gte=0,lte=100"`
	DiscountPrice      decimal.NullDecimal `json:"discount_price"`
	StockQuantity      int                 `json:"stock_quantity" validate:"gte=0"`
	IsDefault          bool                `json:"is_default"`
}

// DiscountInput is a manual product discount
type DiscountInput struct {
	Percentage int                 `json:"discount_percentage" validate:"gte=0,lte=100"`
	Price      decimal.NullDecimal `json:"discount_price"`
	StartAt    *time.Time          `json:"discount_start_at"`
	EndAt      *time.Time          `json:"discount_end_at"`
}

// PriceRequest identifies a cart item whose price the client wants refreshed
type PriceRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
}

// PriceQuote is the current price of a product or variant
type PriceQuote struct {
	ProductID       uuid.UUID       `json:"product_id"`
	VariantID       *uuid.UUID      `json:"variant_id,omitempty"`
	BasePrice       decimal.Decimal `json:"base_price"`
	Price           decimal.Decimal `json:"price"`
	OnSale          bool            `json:"on_sale"`
	DiscountPercent int             `json:"discount_percent"`
	InStock         bool            `json:"in_stock"`
	Stock           int             `json:"stock"`
}

// PriceRange is the lowest and highest price a product is sold at
type PriceRange struct {
	ProductID uuid.UUID       `json:"product_id"`
	Min       decimal.Decimal `json:"min"`
	Max       decimal.Decimal `json:"max"`
	Available bool            `json:"available"`
}

// CatalogService defines the interface for catalog business logic
type CatalogService interface {
	CreateBrand(ctx context.Context, input BrandInput) (*domain.Brand, error)
	ListBrands(ctx context.Context) ([]*domain.Brand, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error)
	ListCategories(ctx context.Context, kind *domain.Kind) ([]*domain.Category, error)

	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)

	AddVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*domain.Variant, error)
	SetDefaultVariant(ctx context.Context, productID, variantID uuid.UUID, actor *uuid.UUID) error
	PriceRange(ctx context.Context, productID uuid.UUID, asOf time.Time) (*PriceRange, error)

	SetDiscount(ctx context.Context, productID uuid.UUID, input DiscountInput, actor *uuid.UUID) (*domain.Product, error)
	ClearDiscount(ctx context.Context, productID uuid.UUID, actor *uuid.UUID) (*domain.Product, error)
	SyncPrices(ctx context.Context, items []PriceRequest, asOf time.Time) ([]PriceQuote, error)
}

type catalogService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(store repository.Store, logger *zap.Logger) CatalogService {
	return &catalogService{store: store, logger: logger}
}

func (s *catalogService) CreateBrand(ctx context.Context, input BrandInput) (*domain.Brand, error) {
	brand := &domain.Brand{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Country:     input.Country,
		CreatedAt:   now(),
	}
	if brand.Name == "" {
		return nil, domain.NewValidationError("brand", "name", "is required")
	}
	if err := s.store.Brands().Create(ctx, brand); err != nil {
		return nil, fmt.Errorf("failed to create brand: %w", err)
	}
	return brand, nil
}

func (s *catalogService) ListBrands(ctx context.Context) ([]*domain.Brand, error) {
	return s.store.Brands().List(ctx)
}

func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	if !input.Kind.Valid() {
		return nil, domain.NewValidationError("category", "kind", "must be perfume or pigment")
	}
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Kind:        input.Kind,
		CreatedAt:   now(),
	}
	if category.Name == "" {
		return nil, domain.NewValidationError("category", "name", "is required")
	}
	if err := s.store.Categories().Create(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *catalogService) ListCategories(ctx context.Context, kind *domain.Kind) ([]*domain.Category, error) {
	return s.store.Categories().List(ctx, kind)
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if !input.Kind.Valid() {
		return nil, domain.NewValidationError("product", "kind", "must be perfume or pigment")
	}
	if input.BasePrice.IsNegative() {
		return nil, domain.NewValidationError("product", "base_price", "must not be negative")
	}
	if input.StockQuantity < 0 {
		return nil, domain.NewValidationError("product", "stock_quantity", "must not be negative")
	}
	if input.Size <= 0 {
		return nil, domain.NewValidationError("product", "size", "must be positive")
	}

	category, err := s.store.Categories().FindByID(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}
	if category.Kind != input.Kind {
		return nil, domain.NewValidationError("product", "category_id", fmt.Sprintf("category is for %s products", category.Kind))
	}
	if _, err := s.store.Brands().FindByID(ctx, input.BrandID); err != nil {
		return nil, err
	}

	ts := now()
	product := &domain.Product{
		ID:            uuid.New(),
		Kind:          input.Kind,
		Name:          strings.TrimSpace(input.Name),
		Slug:          input.Slug,
		SKU:           input.SKU,
		Description:   input.Description,
		BrandID:       input.BrandID,
		CategoryID:    input.CategoryID,
		BasePrice:     input.BasePrice.Round(2),
		Size:          input.Size,
		StockQuantity: input.StockQuantity,
		InStock:       input.StockQuantity > 0,
		Featured:      input.Featured,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if product.Slug == "" {
		product.Slug = slugify(product.Name) + "-" + product.ID.String()[:8]
	}

	if err := s.store.Products().Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("kind", string(product.Kind)),
	)
	return product, nil
}

// GetProduct returns the product with its variants loaded
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return loadProduct(ctx, s.store, id)
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	products, total, err := s.store.Products().List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// AddVariant inserts a variant. The first variant of a product whose size differs from
// the product's legacy size also gets a default sibling mirroring the legacy size, price
// and stock, so the size the product was created with stays purchasable.
func (s *catalogService) AddVariant(ctx context.Context, productID uuid.UUID, input VariantInput) (*domain.Variant, error) {
	if input.Size <= 0 {
		return nil, domain.NewValidationError("variant", "size", "must be positive")
	}
	if input.StockQuantity < 0 {
		return nil, domain.NewValidationError("variant", "stock_quantity", "must not be negative")
	}
	if !input.Price.IsPositive() {
		return nil, domain.NewValidationError("variant", "price", "must be positive")
	}
	local := pricing.Discount{Percentage: input.DiscountPercentage, Price: input.DiscountPrice}
	if err := domain.ValidateDiscount("variant", input.Price, local); err != nil {
		return nil, err
	}

	var variant *domain.Variant
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		product, err := tx.Products().FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}

		existing, err := tx.Variants().CountByProduct(ctx, productID)
		if err != nil {
			return err
		}

		ts := now()
		variant = &domain.Variant{
			ID:                 uuid.New(),
			ProductID:          productID,
			Size:               input.Size,
			Price:              input.Price.Round(2),
			DiscountPercentage: input.DiscountPercentage,
			DiscountPrice:      input.DiscountPrice,
			StockQuantity:      input.StockQuantity,
			InStock:            input.StockQuantity > 0,
			CreatedAt:          ts,
		}
		if err := tx.Variants().Create(ctx, variant); err != nil {
			return err
		}

		// the legacy mirror is always the default; IsDefault only counts without one
		mirror := existing == 0 && product.Size != input.Size
		defaultID := uuid.Nil
		if !mirror && (input.IsDefault || existing == 0) {
			defaultID = variant.ID
		}

		if mirror {
			legacy := &domain.Variant{
				ID:            uuid.New(),
				ProductID:     productID,
				Size:          product.Size,
				Price:         product.BasePrice,
				StockQuantity: product.StockQuantity,
				InStock:       product.StockQuantity > 0,
				CreatedAt:     ts,
			}
			if err := tx.Variants().Create(ctx, legacy); err != nil {
				return fmt.Errorf("failed to mirror legacy size: %w", err)
			}
			defaultID = legacy.ID
			s.logger.Info("Legacy size variant created",
				zap.String("product_id", productID.String()),
				zap.Int("size", product.Size),
			)
		}

		if defaultID != uuid.Nil {
			if err := tx.Variants().SetDefault(ctx, productID, defaultID); err != nil {
				return err
			}
			variant.IsDefault = defaultID == variant.ID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add variant: %w", err)
	}

	return variant, nil
}

func (s *catalogService) SetDefaultVariant(ctx context.Context, productID, variantID uuid.UUID, actor *uuid.UUID) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		variant, err := tx.Variants().FindByID(ctx, variantID)
		if err != nil {
			return err
		}
		if variant.ProductID != productID {
			return domain.ErrVariantNotFound
		}
		if err := tx.Variants().SetDefault(ctx, productID, variantID); err != nil {
			return err
		}
		return recordAudit(ctx, tx, actor, domain.AuditDefaultVariant, "product", productID.String(),
			map[string]string{"variant_id": variantID.String()})
	})
	if err != nil {
		if errors.Is(err, domain.ErrIntegrity) {
			s.logger.Error("Default variant invariant violated",
				zap.String("product_id", productID.String()),
				zap.Error(err),
			)
		}
		return fmt.Errorf("failed to set default variant: %w", err)
	}
	return nil
}

func (s *catalogService) PriceRange(ctx context.Context, productID uuid.UUID, asOf time.Time) (*PriceRange, error) {
	product, err := loadProduct(ctx, s.store, productID)
	if err != nil {
		return nil, err
	}
	min, max, ok := product.PriceRange(asOf)
	return &PriceRange{ProductID: productID, Min: min, Max: max, Available: ok}, nil
}

func (s *catalogService) SetDiscount(ctx context.Context, productID uuid.UUID, input DiscountInput, actor *uuid.UUID) (*domain.Product, error) {
	discount := pricing.Discount{
		Percentage: input.Percentage,
		Price:      input.Price,
		StartAt:    input.StartAt,
		EndAt:      input.EndAt,
	}

	var product *domain.Product
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		p, err := tx.Products().FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := domain.ValidateDiscount("product", p.BasePrice, discount); err != nil {
			return err
		}
		if err := tx.Products().UpdateDiscount(ctx, productID, discount, nil); err != nil {
			return err
		}
		p.Discount = discount
		p.DiscountSource = nil
		product = p
		return recordAudit(ctx, tx, actor, domain.AuditDiscountSet, "product", productID.String(), input)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set discount: %w", err)
	}
	return product, nil
}

func (s *catalogService) ClearDiscount(ctx context.Context, productID uuid.UUID, actor *uuid.UUID) (*domain.Product, error) {
	var product *domain.Product
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		p, err := tx.Products().FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := tx.Products().UpdateDiscount(ctx, productID, pricing.Discount{}, nil); err != nil {
			return err
		}
		p.ClearDiscount()
		product = p
		return recordAudit(ctx, tx, actor, domain.AuditDiscountClear, "product", productID.String(), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear discount: %w", err)
	}
	return product, nil
}

// SyncPrices resolves current prices for the given items. Unknown products and
// variants are left out of the result.
func (s *catalogService) SyncPrices(ctx context.Context, items []PriceRequest, asOf time.Time) ([]PriceQuote, error) {
	cache := make(map[uuid.UUID]*domain.Product, len(items))
	quotes := make([]PriceQuote, 0, len(items))

	for _, item := range items {
		product, ok := cache[item.ProductID]
		if !ok {
			p, err := loadProduct(ctx, s.store, item.ProductID)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Debug("Price sync skipped unknown product", zap.String("product_id", item.ProductID.String()))
				continue
			}
			if err != nil {
				return nil, err
			}
			cache[item.ProductID] = p
			product = p
		}

		quote := PriceQuote{ProductID: product.ID, VariantID: item.VariantID}
		var v *domain.Variant
		if item.VariantID != nil {
			if v = product.FindVariant(*item.VariantID); v == nil {
				continue
			}
		} else if v = product.DefaultVariant(); v != nil {
			quote.VariantID = &v.ID
		}

		if v != nil {
			quote.BasePrice = v.Price
			quote.Price = product.VariantPrice(v, asOf)
			quote.InStock = v.InStock && v.StockQuantity > 0
			quote.Stock = v.StockQuantity
		} else {
			quote.BasePrice = product.BasePrice
			quote.Price = product.ResolvePrice(asOf)
			quote.InStock = product.InStock && product.StockQuantity > 0
			quote.Stock = product.StockQuantity
		}
		quote.OnSale = quote.Price.LessThan(quote.BasePrice)
		if quote.OnSale {
			quote.DiscountPercent = pricing.DisplayPercent(quote.BasePrice, pricing.Discount{Price: decimal.NewNullDecimal(quote.Price)})
		}
		quotes = append(quotes, quote)
	}

	return quotes, nil
}

// loadProduct reads a product and its variants.
func loadProduct(ctx context.Context, store repository.Store, id uuid.UUID) (*domain.Product, error) {
	product, err := store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	variants, err := store.Variants().ListByProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	product.Variants = variants
	return product, nil
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
