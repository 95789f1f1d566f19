package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"perfume-store/internal/config"
	"perfume-store/internal/delivery"
	"perfume-store/internal/domain"
	"perfume-store/internal/notify"
	"perfume-store/internal/payment"
	"perfume-store/internal/repository/repotest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// courier is a flat rate delivery provider for tests.
type courier struct {
	cost    decimal.Decimal
	fail    bool
	shipped int
}

func (c *courier) Name() string { return "courier" }

func (c *courier) Calculate(_ context.Context, _ delivery.Quote) ([]delivery.Option, error) {
	if c.fail {
		return nil, errors.New("courier api unavailable")
	}
	return []delivery.Option{{
		Provider:  "courier",
		Service:   "standard",
		Cost:      c.cost,
		PeriodMin: 2,
		PeriodMax: 4,
		Currency:  "RUB",
	}}, nil
}

func (c *courier) CreateShipment(_ context.Context, order *domain.Order) (string, error) {
	if c.fail {
		return "", errors.New("courier api unavailable")
	}
	c.shipped++
	return "TRK-" + order.ID.String()[:6], nil
}

// recorder collects notified events.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store    *repotest.Store
	courier  *courier
	events   *recorder
	catalog  CatalogService
	promos   PromotionService
	orders   OrderService
	carts    CartService
	loyalty  LoyaltyService
	accounts AccountService
	audit    AuditService
}

var testLoyalty = config.LoyaltyConfig{
	EarnRate:   decimal.RequireFromString("0.05"),
	PointValue: decimal.NewFromInt(1),
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	store := repotest.New()
	c := &courier{cost: decimal.NewFromInt(30)}
	events := &recorder{}

	payments := payment.NewRegistry(payment.NewOffline(config.PaymentConfig{
		SuccessURL: "https://shop.test/payment/success",
	}))
	deliveries := delivery.NewRegistry(logger,
		delivery.NewPickup(config.DeliveryConfig{PickupAddress: "Main st. 1"}),
		c,
	)

	return &fixture{
		store:    store,
		courier:  c,
		events:   events,
		catalog:  NewCatalogService(store, logger),
		promos:   NewPromotionService(store, events, logger),
		orders:   NewOrderService(store, testLoyalty, payments, deliveries, events, logger),
		carts:    NewCartService(store, testLoyalty, config.DeliveryConfig{OriginPostalCode: "101000"}, payments, deliveries, events, logger),
		loyalty:  NewLoyaltyService(store, logger),
		accounts: NewAccountService(store, logger),
		audit:    NewAuditService(store),
	}
}

func (f *fixture) brand(t *testing.T, name string) *domain.Brand {
	t.Helper()
	b, err := f.catalog.CreateBrand(context.Background(), BrandInput{Name: name})
	require.NoError(t, err)
	return b
}

func (f *fixture) category(t *testing.T, name string, kind domain.Kind) *domain.Category {
	t.Helper()
	c, err := f.catalog.CreateCategory(context.Background(), CategoryInput{Name: name, Kind: kind})
	require.NoError(t, err)
	return c
}

// product creates a perfume under a fresh brand and category.
func (f *fixture) product(t *testing.T, name string, price int64, stock int) *domain.Product {
	t.Helper()
	b := f.brand(t, name+" brand")
	c := f.category(t, name+" category", domain.KindPerfume)
	return f.productIn(t, name, b.ID, c.ID, price, stock)
}

func (f *fixture) productIn(t *testing.T, name string, brandID, categoryID uuid.UUID, price int64, stock int) *domain.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), ProductInput{
		Kind:          domain.KindPerfume,
		Name:          name,
		BrandID:       brandID,
		CategoryID:    categoryID,
		BasePrice:     decimal.NewFromInt(price),
		Size:          50,
		StockQuantity: stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) addToCart(t *testing.T, userID, productID uuid.UUID, quantity int) {
	t.Helper()
	_, err := f.carts.AddLine(context.Background(), userID, LineInput{ProductID: productID, Quantity: quantity})
	require.NoError(t, err)
}

func (f *fixture) grantPoints(t *testing.T, userID uuid.UUID, points int) {
	t.Helper()
	_, err := f.loyalty.Adjust(context.Background(), AdjustInput{UserID: userID, Points: points, Reason: "welcome bonus"})
	require.NoError(t, err)
}

func courierCheckout(points int) CheckoutInput {
	return CheckoutInput{
		PaymentMethod:   payment.OfflineName,
		DeliveryMethod:  "courier",
		DeliveryService: "standard",
		RecipientName:   "Anna Petrova",
		Phone:           "+7 900 000 00 00",
		City:            "Moscow",
		Address:         "Tverskaya 7",
		PostalCode:      "125009",
		LoyaltyPoints:   points,
	}
}

func ptr[T any](v T) *T { return &v }

func day(offset int) time.Time {
	return time.Now().UTC().Truncate(time.Microsecond).AddDate(0, 0, offset)
}
