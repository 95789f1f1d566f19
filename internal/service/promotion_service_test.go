package service

import (
	"context"
	"testing"

	"perfume-store/internal/domain"
	"perfume-store/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) price(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.ResolvePrice(now())
}

func (f *fixture) source(t *testing.T, id uuid.UUID) *uuid.UUID {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.DiscountSource
}

func TestPromotion_ClearOnlyTouchesOwnedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	brand := f.brand(t, "Maison Lune")
	cat := f.category(t, "Eau de parfum", domain.KindPerfume)
	p1 := f.productIn(t, "Lune I", brand.ID, cat.ID, 100, 5)
	p2 := f.productIn(t, "Lune II", brand.ID, cat.ID, 200, 5)
	other := f.product(t, "Soleil", 100, 5)

	brandPromo, err := f.promos.Create(ctx, PromotionInput{
		Title:              "Lune week",
		Type:               domain.PromotionTypeBrand,
		BrandID:            &brand.ID,
		DiscountPercentage: 20,
		Active:             true,
	}, nil)
	require.NoError(t, err)
	assert.True(t, brandPromo.Active)

	assert.True(t, decimal.NewFromInt(80).Equal(f.price(t, p1.ID)))
	assert.True(t, decimal.NewFromInt(160).Equal(f.price(t, p2.ID)))
	assert.True(t, decimal.NewFromInt(100).Equal(f.price(t, other.ID)))

	// the manual promotion takes over p2 from the brand promotion
	manual, err := f.promos.Create(ctx, PromotionInput{
		Title:         "Hand picked",
		Type:          domain.PromotionTypeManual,
		DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(70)),
		ProductIDs:    []uuid.UUID{p2.ID, other.ID},
		Active:        true,
	}, nil)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(70).Equal(f.price(t, p2.ID)))
	assert.True(t, decimal.NewFromInt(70).Equal(f.price(t, other.ID)))

	cleared, err := f.promos.Clear(ctx, brandPromo.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared.Cleared)

	assert.True(t, decimal.NewFromInt(100).Equal(f.price(t, p1.ID)))
	assert.Nil(t, f.source(t, p1.ID))
	assert.True(t, decimal.NewFromInt(70).Equal(f.price(t, p2.ID)))
	assert.Equal(t, manual.ID, *f.source(t, p2.ID))

	stored, err := f.promos.Get(ctx, brandPromo.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Contains(t, f.events.types(), notify.EventPromotionCleared)
}

func TestPromotion_FixedPriceSkipsCheaperProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cheap := f.product(t, "Petit", 60, 5)
	equal := f.product(t, "Moyen", 70, 5)
	dear := f.product(t, "Grand", 100, 5)

	promo, err := f.promos.Create(ctx, PromotionInput{
		Title:         "Seventy",
		Type:          domain.PromotionTypeManual,
		DiscountPrice: decimal.NewNullDecimal(decimal.NewFromInt(70)),
		ProductIDs:    []uuid.UUID{cheap.ID, equal.ID, dear.ID},
	}, nil)
	require.NoError(t, err)
	assert.False(t, promo.Active)

	result, err := f.promos.Apply(ctx, promo.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.ElementsMatch(t, []uuid.UUID{cheap.ID, equal.ID}, result.Skipped)

	assert.True(t, decimal.NewFromInt(60).Equal(f.price(t, cheap.ID)))
	assert.Nil(t, f.source(t, cheap.ID))
	assert.True(t, decimal.NewFromInt(70).Equal(f.price(t, dear.ID)))

	entries, err := f.audit.ListForObject(ctx, "promotion", promo.ID.String())
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.ElementsMatch(t, []string{domain.AuditPromotionCreate, domain.AuditPromotionApply}, actions)
}

func TestPromotion_UpdateMovesTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.product(t, "Alpha", 100, 5)
	second := f.product(t, "Beta", 100, 5)

	input := PromotionInput{
		Title:              "Rotating",
		Type:               domain.PromotionTypeManual,
		DiscountPercentage: 10,
		ProductIDs:         []uuid.UUID{first.ID},
		Active:             true,
	}
	promo, err := f.promos.Create(ctx, input, nil)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(90).Equal(f.price(t, first.ID)))

	input.ProductIDs = []uuid.UUID{second.ID}
	input.DiscountPercentage = 25
	_, err = f.promos.Update(ctx, promo.ID, input, nil)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(f.price(t, first.ID)))
	assert.True(t, decimal.NewFromInt(75).Equal(f.price(t, second.ID)))

	input.Active = false
	updated, err := f.promos.Update(ctx, promo.ID, input, nil)
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.True(t, decimal.NewFromInt(100).Equal(f.price(t, second.ID)))

	targets, err := f.promos.ResolveTargets(ctx, promo.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, second.ID, targets[0].ID)
}

func TestPromotion_RejectsInvalidDefinitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.promos.Create(ctx, PromotionInput{Title: "No discount", Type: domain.PromotionTypeAll}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.promos.Create(ctx, PromotionInput{Title: "No brand", Type: domain.PromotionTypeBrand, DiscountPercentage: 5}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.promos.Apply(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)

	promos, err := f.promos.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, promos)
}
