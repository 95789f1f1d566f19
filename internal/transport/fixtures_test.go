package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"perfume-store/internal/config"
	"perfume-store/internal/delivery"
	"perfume-store/internal/domain"
	"perfume-store/internal/middleware"
	"perfume-store/internal/notify"
	"perfume-store/internal/payment"
	"perfume-store/internal/repository/repotest"
	"perfume-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret        = "transport-test-secret"
	testWebhookSecret = "hook-secret"
)

type api struct {
	t       *testing.T
	router  chi.Router
	catalog service.CatalogService
	carts   service.CartService
	orders  service.OrderService
	loyalty service.LoyaltyService
}

func newAPI(t *testing.T) *api {
	t.Helper()

	logger := zap.NewNop()
	store := repotest.New()
	loyaltyCfg := config.LoyaltyConfig{
		EarnRate:   decimal.RequireFromString("0.05"),
		PointValue: decimal.NewFromInt(1),
	}
	payments := payment.NewRegistry(payment.NewOffline(config.PaymentConfig{WebhookSecret: testWebhookSecret}))
	deliveries := delivery.NewRegistry(logger, delivery.NewPickup(config.DeliveryConfig{}))
	events := notify.Nop{}

	a := &api{
		t:       t,
		catalog: service.NewCatalogService(store, logger),
		carts:   service.NewCartService(store, loyaltyCfg, config.DeliveryConfig{}, payments, deliveries, events, logger),
		orders:  service.NewOrderService(store, loyaltyCfg, payments, deliveries, events, logger),
		loyalty: service.NewLoyaltyService(store, logger),
	}

	auth := middleware.AuthMiddleware(testSecret, logger)
	admin := middleware.RequireAdmin(logger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		NewCatalogHandler(a.catalog, service.NewAuditService(store), logger).RegisterRoutes(r, auth, admin)
		NewPromotionHandler(service.NewPromotionService(store, events, logger), logger).RegisterRoutes(r, auth, admin)
		NewCartHandler(a.carts, logger).RegisterRoutes(r, auth)
		NewOrderHandler(a.orders, payments, logger).RegisterRoutes(r, auth, admin)
		NewAccountHandler(service.NewAccountService(store, logger), a.loyalty, logger).RegisterRoutes(r, auth, admin)
	})
	a.router = r
	return a
}

// caller is an authenticated user of the API.
type caller struct {
	id    uuid.UUID
	token string
}

func (a *api) caller(role string) caller {
	a.t.Helper()
	id := uuid.New()
	token, err := middleware.IssueToken(testSecret, id, role, time.Hour)
	require.NoError(a.t, err)
	return caller{id: id, token: token}
}

func (a *api) customer() caller { return a.caller(middleware.RoleCustomer) }
func (a *api) admin() caller    { return a.caller(middleware.RoleAdmin) }

func (a *api) do(method, path string, as *caller, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+as.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	return decodeBody[middleware.ErrorResponse](t, w).Error
}

// product creates a perfume through the service layer.
func (a *api) product(name string, price int64, stock int) *domain.Product {
	a.t.Helper()
	ctx := context.Background()
	brand, err := a.catalog.CreateBrand(ctx, service.BrandInput{Name: name + " brand"})
	require.NoError(a.t, err)
	category, err := a.catalog.CreateCategory(ctx, service.CategoryInput{Name: name + " category", Kind: domain.KindPerfume})
	require.NoError(a.t, err)
	p, err := a.catalog.CreateProduct(ctx, service.ProductInput{
		Kind:          domain.KindPerfume,
		Name:          name,
		BrandID:       brand.ID,
		CategoryID:    category.ID,
		BasePrice:     decimal.NewFromInt(price),
		Size:          50,
		StockQuantity: stock,
	})
	require.NoError(a.t, err)
	return p
}

func pickupCheckout() service.CheckoutInput {
	return service.CheckoutInput{
		PaymentMethod:  payment.OfflineName,
		DeliveryMethod: delivery.PickupName,
		RecipientName:  "Anna Petrova",
		Phone:          "+7 900 000 00 00",
	}
}

// placeOrder fills the caller's cart with one product and checks out.
func (a *api) placeOrder(as caller, price int64, quantity int) *domain.Order {
	a.t.Helper()
	p := a.product("Order item "+uuid.NewString()[:8], price, 10)

	w := a.do(http.MethodPost, "/api/v1/cart/lines", &as, service.LineInput{ProductID: p.ID, Quantity: quantity})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/v1/cart/checkout", &as, pickupCheckout())
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[service.CheckoutResult](a.t, w).Order
}
