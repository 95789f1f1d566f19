package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"perfume-store/internal/config"
	"perfume-store/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry(NewOffline(config.PaymentConfig{}))

	p, err := registry.Get(OfflineName)
	require.NoError(t, err)
	assert.Equal(t, OfflineName, p.Name())

	_, err = registry.Get("crypto")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, []string{OfflineName}, registry.Names())
}

func TestOffline_CreatePayment(t *testing.T) {
	p := NewOffline(config.PaymentConfig{SuccessURL: "https://shop.example/checkout/success"})
	order := &domain.Order{ID: uuid.New()}

	intent, err := p.CreatePayment(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "offline-"+order.ID.String(), intent.PaymentID)
	assert.Equal(t, "https://shop.example/checkout/success?order_id="+order.ID.String(), intent.RedirectURL)

	status, err := p.CheckStatus(context.Background(), intent.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	_, err = p.CheckStatus(context.Background(), "other-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func signedWebhook(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(WebhookSecretHeader, secret)
	return req
}

func TestOffline_ParseWebhook(t *testing.T) {
	p := NewOffline(config.PaymentConfig{WebhookSecret: "s3cret"})
	orderID := uuid.New()
	paidAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	body := `{"order_id":"` + orderID.String() + `","status":"succeeded","paid_at":"` + paidAt.Format(time.RFC3339) + `"}`
	n, err := p.ParseWebhook(signedWebhook(body, "s3cret"))
	require.NoError(t, err)
	assert.Equal(t, orderID, n.OrderID)
	assert.True(t, n.Paid)
	assert.True(t, n.PaidAt.Equal(paidAt))
	assert.Equal(t, "offline-"+orderID.String(), n.PaymentID)

	body = `{"order_id":"` + orderID.String() + `","status":"cancelled"}`
	n, err = p.ParseWebhook(signedWebhook(body, "s3cret"))
	require.NoError(t, err)
	assert.False(t, n.Paid)

	_, err = p.ParseWebhook(signedWebhook(`{"status":"succeeded"}`, "s3cret"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = p.ParseWebhook(signedWebhook(`not json`, "s3cret"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOffline_ParseWebhook_RejectsWithoutConfiguredSecret(t *testing.T) {
	p := NewOffline(config.PaymentConfig{})
	body := `{"order_id":"` + uuid.NewString() + `","status":"succeeded"}`

	_, err := p.ParseWebhook(httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = p.ParseWebhook(signedWebhook(body, ""))
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestOffline_ParseWebhook_Secret(t *testing.T) {
	p := NewOffline(config.PaymentConfig{WebhookSecret: "s3cret"})
	body := `{"order_id":"` + uuid.NewString() + `","status":"succeeded"}`

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	_, err := p.ParseWebhook(req)
	assert.ErrorIs(t, err, ErrBadSignature)

	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set(WebhookSecretHeader, "guess")
	_, err = p.ParseWebhook(req)
	assert.ErrorIs(t, err, ErrBadSignature)

	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	req.Header.Set(WebhookSecretHeader, "s3cret")
	n, err := p.ParseWebhook(req)
	require.NoError(t, err)
	assert.True(t, n.Paid)
}
