package transport

import (
	"net/http"
	"testing"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/middleware"
	"perfume-store/internal/service"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_DiscountShowsInProductPrice(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	p := a.product("Santal", 100, 5)

	w := a.do(http.MethodPut, "/api/v1/admin/products/"+p.ID.String()+"/discount", &admin,
		map[string]any{"discount_percentage": 20})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/v1/products/"+p.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[map[string]any](t, w)
	assert.Equal(t, "80", got["price"])
	assert.Equal(t, true, got["on_sale"])
	assert.EqualValues(t, 20, got["discount_percent"])
	assert.Equal(t, "50 ml", got["size_label"])

	w = a.do(http.MethodDelete, "/api/v1/admin/products/"+p.ID.String()+"/discount", &admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100", decodeBody[map[string]any](t, w)["price"])

	w = a.do(http.MethodGet, "/api/v1/admin/audit/product/"+p.ID.String(), &admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decodeBody[[]domain.AuditEntry](t, w)
	require.Len(t, entries, 2)
}

func TestCatalog_ListProductsFiltersAndPages(t *testing.T) {
	a := newAPI(t)
	a.product("Vetiver", 120, 3)
	a.product("Iris", 90, 0)
	a.product("Oud", 300, 1)

	w := a.do(http.MethodGet, "/api/v1/products?in_stock=true&page_size=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decodeBody[ListResponse[map[string]any]](t, w)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.PageSize)

	w = a.do(http.MethodGet, "/api/v1/products?brand_id=nope", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid query parameter brand_id", errorBody(t, w).Message)

	w = a.do(http.MethodGet, "/api/v1/products?kind=candle", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalog_CreateProductValidation(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()

	w := a.do(http.MethodPost, "/api/v1/admin/products", &admin, map[string]any{
		"kind": "candle",
		"name": "",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	detail := errorBody(t, w)
	assert.Equal(t, "validation failed", detail.Message)
	assert.Contains(t, detail.Details, "validation_errors")

	w = a.do(http.MethodPost, "/api/v1/admin/products", &admin, `{"name":"Oud","colour":"amber"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", errorBody(t, w).Message)

	w = a.do(http.MethodPost, "/api/v1/admin/products", &admin, service.ProductInput{
		Kind:       domain.KindPerfume,
		Name:       "Orphan",
		BrandID:    uuid.New(),
		CategoryID: uuid.New(),
		Size:       50,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalog_NotFoundAndMalformedIDs(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "product not found", errorBody(t, w).Message)

	w = a.do(http.MethodGet, "/api/v1/products/42", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid productID", errorBody(t, w).Message)
}

func TestCatalog_VariantsAndPriceRange(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	p := a.product("Neroli", 100, 5)

	w := a.do(http.MethodPost, "/api/v1/admin/products/"+p.ID.String()+"/variants", &admin, map[string]any{
		"size":           100,
		"price":          "180",
		"stock_quantity": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	variant := decodeBody[domain.Variant](t, w)

	w = a.do(http.MethodGet, "/api/v1/products/"+p.ID.String()+"/price-range", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rng := decodeBody[service.PriceRange](t, w)
	assert.Equal(t, "100", rng.Min.String())
	assert.Equal(t, "180", rng.Max.String())
	assert.True(t, rng.Available)

	w = a.do(http.MethodPut, "/api/v1/admin/products/"+p.ID.String()+"/default-variant", &admin,
		DefaultVariantRequest{VariantID: variant.ID})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(http.MethodGet, "/api/v1/products/"+p.ID.String()+"/price-range?at=yesterday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCatalog_SyncPrices(t *testing.T) {
	a := newAPI(t)
	p := a.product("Ambrette", 70, 4)

	w := a.do(http.MethodPost, "/api/v1/prices/sync", nil, SyncPricesRequest{
		Items: []service.PriceRequest{{ProductID: p.ID}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quotes := decodeBody[[]service.PriceQuote](t, w)
	require.Len(t, quotes, 1)
	assert.Equal(t, "70", quotes[0].Price.String())
	assert.True(t, quotes[0].InStock)

	w = a.do(http.MethodPost, "/api/v1/prices/sync", nil, SyncPricesRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Feature: perfume-store, Property 19: Admin routes reject non-admin callers
func TestProperty_AdminRoutesRejectNonAdmins(t *testing.T) {
	a := newAPI(t)
	customer := a.customer()

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/admin/brands"},
		{http.MethodPost, "/api/v1/admin/products"},
		{http.MethodPut, "/api/v1/admin/products/" + uuid.NewString() + "/discount"},
		{http.MethodGet, "/api/v1/admin/promotions"},
		{http.MethodPost, "/api/v1/admin/promotions/" + uuid.NewString() + "/apply"},
		{http.MethodPut, "/api/v1/admin/orders/" + uuid.NewString() + "/status"},
		{http.MethodGet, "/api/v1/admin/dashboard"},
		{http.MethodPost, "/api/v1/admin/loyalty/" + uuid.NewString() + "/adjust"},
	}

	properties := gopter.NewProperties(nil)
	properties.Property("customers get 403 and anonymous callers 401", prop.ForAll(
		func(i int, anonymous bool) bool {
			route := routes[i]
			if anonymous {
				return a.do(route.method, route.path, nil, `{}`).Code == http.StatusUnauthorized
			}
			return a.do(route.method, route.path, &customer, `{}`).Code == http.StatusForbidden
		},
		gen.IntRange(0, len(routes)-1),
		gen.Bool(),
	))
	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCatalog_ExpiredTokenOnAdminRoute(t *testing.T) {
	a := newAPI(t)
	token, err := middleware.IssueToken(testSecret, uuid.New(), middleware.RoleAdmin, -time.Minute)
	require.NoError(t, err)

	w := a.do(http.MethodPost, "/api/v1/admin/brands", &caller{token: token}, service.BrandInput{Name: "Late"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
