package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"perfume-store/internal/config"
	"perfume-store/internal/delivery"
	"perfume-store/internal/notify"
	"perfume-store/internal/payment"
	"perfume-store/internal/repository/repotest"
	"perfume-store/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDB struct {
	status string
	closed bool
}

func (f *fakeDB) Health() map[string]string { return map[string]string{"status": f.status} }
func (f *fakeDB) DB() *sql.DB               { return nil }
func (f *fakeDB) Close() error              { f.closed = true; return nil }

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Env: "development"},
		JWT:       config.JWTConfig{Secret: "server-test-secret"},
		RateLimit: config.RateLimitConfig{Requests: 2, WindowSeconds: 60},
		Loyalty: config.LoyaltyConfig{
			EarnRate:   decimal.RequireFromString("0.05"),
			PointValue: decimal.NewFromInt(1),
		},
	}
}

func testServices(cfg *config.Config) Services {
	logger := zap.NewNop()
	store := repotest.New()
	payments := payment.NewRegistry(payment.NewOffline(cfg.Payment))
	deliveries := delivery.NewRegistry(logger, delivery.NewPickup(cfg.Delivery))
	events := notify.Nop{}

	return Services{
		Catalog:    service.NewCatalogService(store, logger),
		Audit:      service.NewAuditService(store),
		Promotions: service.NewPromotionService(store, events, logger),
		Carts:      service.NewCartService(store, cfg.Loyalty, cfg.Delivery, payments, deliveries, events, logger),
		Orders:     service.NewOrderService(store, cfg.Loyalty, payments, deliveries, events, logger),
		Accounts:   service.NewAccountService(store, logger),
		Loyalty:    service.NewLoyaltyService(store, logger),
		Payments:   payments,
	}
}

func serve(h http.Handler, method, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	cfg := testConfig()

	db := &fakeDB{status: "up"}
	router := NewRouter(cfg, zap.NewNop(), db, nil, testServices(cfg))
	w := serve(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])

	db.status = "down"
	w = serve(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth_ReportsRedis(t *testing.T) {
	cfg := testConfig()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	router := NewRouter(cfg, zap.NewNop(), nil, client, testServices(cfg))

	var body map[string]any
	w := serve(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "up", body["redis"])

	mr.Close()
	w = serve(router, http.MethodGet, "/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "down", body["redis"])
	assert.Equal(t, "degraded", body["status"])
}

func TestRouter_ServesAPIAndUnknownRoutes(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, zap.NewNop(), nil, nil, testServices(cfg))

	w := serve(router, http.MethodGet, "/api/v1/brands")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Content-Type"))

	w = serve(router, http.MethodGet, "/api/v1/cart")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, http.MethodGet, "/api/v2/brands")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, zap.NewNop(), nil, nil, testServices(cfg))

	w := serve(router, http.MethodOptions, "/api/v1/products",
		"Origin", "http://shop.example",
		"Access-Control-Request-Method", http.MethodGet,
	)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimitsAPIOnly(t *testing.T) {
	cfg := testConfig()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	router := NewRouter(cfg, zap.NewNop(), nil, client, testServices(cfg))

	for i := 0; i < cfg.RateLimit.Requests; i++ {
		w := serve(router, http.MethodGet, "/api/v1/brands")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := serve(router, http.MethodGet, "/api/v1/brands")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = serve(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_CloseReleasesResources(t *testing.T) {
	cfg := testConfig()
	db := &fakeDB{status: "up"}
	srv := NewServer(cfg, zap.NewNop(), db, nil, testServices(cfg))

	assert.Equal(t, ":0", srv.Addr)
	require.NoError(t, srv.Close())
	assert.True(t, db.closed)
}
