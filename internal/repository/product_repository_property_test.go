package repository

import (
	"context"
	"testing"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/pricing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feature: perfume-store, Property 6: Product creation preserves price and discount fields
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	f := newFixture(t)
	productRepo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, cents int64, pct int, stock int, withFixed bool) bool {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Microsecond)
			end := now.Add(72 * time.Hour)

			base := decimal.New(cents, -2)
			discount := pricing.Discount{Percentage: pct, StartAt: &now, EndAt: &end}
			if withFixed {
				discount.Price = decimal.NewNullDecimal(base.Div(decimal.NewFromInt(2)).Round(2))
			}

			id := uuid.New()
			product := &domain.Product{
				ID:            id,
				Kind:          domain.KindPigment,
				Name:          name,
				Slug:          "p-" + id.String(),
				BrandID:       f.brand.ID,
				CategoryID:    f.category.ID,
				BasePrice:     base,
				Size:          10,
				Discount:      discount,
				StockQuantity: stock,
				InStock:       stock > 0,
				CreatedAt:     now,
				UpdatedAt:     now,
			}

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Name != product.Name || retrieved.Kind != domain.KindPigment {
				t.Logf("FAIL: Name/kind mismatch. Expected %s/%s, got %s/%s", product.Name, product.Kind, retrieved.Name, retrieved.Kind)
				return false
			}

			if !retrieved.BasePrice.Equal(base) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", base, retrieved.BasePrice)
				return false
			}

			if retrieved.Discount.Percentage != pct || retrieved.Discount.Price.Valid != withFixed {
				t.Logf("FAIL: Discount mismatch. Expected %+v, got %+v", discount, retrieved.Discount)
				return false
			}

			if withFixed && !retrieved.Discount.Price.Decimal.Equal(discount.Price.Decimal) {
				t.Logf("FAIL: Fixed price mismatch. Expected %s, got %s", discount.Price.Decimal, retrieved.Discount.Price.Decimal)
				return false
			}

			if retrieved.Discount.EndAt == nil || !retrieved.Discount.EndAt.Equal(end) {
				t.Logf("FAIL: Discount end mismatch")
				return false
			}

			if retrieved.StockQuantity != stock || retrieved.InStock != (stock > 0) {
				t.Logf("FAIL: Stock mismatch. Expected %d, got %d", stock, retrieved.StockQuantity)
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),
		gen.Int64Range(100, 99_999_999),
		gen.IntRange(0, 100),
		gen.IntRange(0, 1000),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewProductRepository(testDB)

	onSale := f.product(t, "100", 5)
	f.product(t, "200", 0)

	require.NoError(t, repo.UpdateDiscount(ctx, onSale.ID, pricing.Discount{Percentage: 20}, nil))

	now := time.Now()
	products, total, err := repo.List(ctx, ProductFilter{BrandID: &f.brand.ID, OnSaleAt: &now, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, products, 1)
	assert.Equal(t, onSale.ID, products[0].ID)

	inStock := true
	_, total, err = repo.List(ctx, ProductFilter{BrandID: &f.brand.ID, InStock: &inStock})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = repo.List(ctx, ProductFilter{BrandID: &f.brand.ID, SortBy: "base_price; DROP TABLE products", SortOrder: SortOrderAsc})
	require.NoError(t, err, "unknown sort fields fall back to created_at")
	assert.Equal(t, 2, total)
}

func TestProductRepository_NotFound(t *testing.T) {
	_, err := NewProductRepository(testDB).FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
