// Package payment defines the contract the store uses to talk to payment providers.
// Provider wire formats live behind the Provider interface; the rest of the store
// only sees Intent, Status and Notification.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
)

// Status of a payment at the provider
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusCancelled Status = "cancelled"
)

// Intent is what a provider returns when a payment is created.
// RedirectURL is empty for providers that need no customer interaction.
type Intent struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Notification is a parsed provider callback.
type Notification struct {
	OrderID   uuid.UUID
	PaymentID string
	Paid      bool
	PaidAt    time.Time
}

// Provider is implemented by every payment integration
type Provider interface {
	Name() string
	CreatePayment(ctx context.Context, order *domain.Order) (*Intent, error)
	CheckStatus(ctx context.Context, paymentID string) (Status, error)
	ParseWebhook(r *http.Request) (*Notification, error)
}

// ErrUnknownProvider is returned for a payment method with no registered provider
var ErrUnknownProvider = fmt.Errorf("unknown payment provider: %w", domain.ErrValidation)

// Registry holds the configured providers keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry with the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the registered providers in alphabetical order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
