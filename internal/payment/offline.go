package payment

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"perfume-store/internal/config"
	"perfume-store/internal/domain"

	"github.com/google/uuid"
)

// OfflineName is the payment method for cash on delivery and bank transfer.
const OfflineName = "offline"

// Offline is the provider for payments settled outside the store. Confirmation comes
// from an administrator (or the accounting system) through the webhook.
type Offline struct {
	cfg config.PaymentConfig
}

// NewOffline creates the offline provider
func NewOffline(cfg config.PaymentConfig) *Offline {
	return &Offline{cfg: cfg}
}

func (p *Offline) Name() string { return OfflineName }

// CreatePayment returns a deterministic payment id and the success page as the return URL.
func (p *Offline) CreatePayment(_ context.Context, order *domain.Order) (*Intent, error) {
	intent := &Intent{PaymentID: OfflineName + "-" + order.ID.String()}
	if p.cfg.SuccessURL != "" {
		u, err := url.Parse(p.cfg.SuccessURL)
		if err != nil {
			return nil, fmt.Errorf("invalid success url: %w", err)
		}
		q := u.Query()
		q.Set("order_id", order.ID.String())
		u.RawQuery = q.Encode()
		intent.RedirectURL = u.String()
	}
	return intent, nil
}

// CheckStatus always reports pending; offline payments are only confirmed by webhook.
func (p *Offline) CheckStatus(_ context.Context, paymentID string) (Status, error) {
	if !strings.HasPrefix(paymentID, OfflineName+"-") {
		return "", fmt.Errorf("payment %q: %w", paymentID, domain.ErrNotFound)
	}
	return StatusPending, nil
}

type offlineWebhook struct {
	OrderID   uuid.UUID  `json:"order_id"`
	PaymentID string     `json:"payment_id"`
	Status    Status     `json:"status"`
	PaidAt    *time.Time `json:"paid_at"`
}

// ErrBadSignature is returned for a webhook that fails the provider's authenticity check
var ErrBadSignature = errors.New("webhook signature mismatch")

// WebhookSecretHeader carries the shared secret of offline confirmations
const WebhookSecretHeader = "X-Webhook-Secret"

// ParseWebhook reads {"order_id","payment_id","status","paid_at"}. Without a configured
// secret every confirmation is rejected.
func (p *Offline) ParseWebhook(r *http.Request) (*Notification, error) {
	if p.cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("offline webhook secret is not configured: %w", ErrBadSignature)
	}
	got := r.Header.Get(WebhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(p.cfg.WebhookSecret)) != 1 {
		return nil, ErrBadSignature
	}

	var body offlineWebhook
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, domain.NewValidationError("payment_webhook", "", "invalid JSON body")
	}
	if body.OrderID == uuid.Nil {
		return nil, domain.NewValidationError("payment_webhook", "order_id", "is required")
	}

	n := &Notification{
		OrderID:   body.OrderID,
		PaymentID: body.PaymentID,
		Paid:      body.Status == StatusSucceeded,
		PaidAt:    time.Now().UTC(),
	}
	if n.PaymentID == "" {
		n.PaymentID = OfflineName + "-" + body.OrderID.String()
	}
	if body.PaidAt != nil {
		n.PaidAt = body.PaidAt.UTC()
	}
	return n, nil
}
