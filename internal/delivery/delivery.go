// Package delivery defines the contract for shipping providers and aggregates their quotes.
package delivery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"perfume-store/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWeightGrams is used when the parcel weight cannot be derived from a cart.
const DefaultWeightGrams = 500

// Quote is a delivery cost request
type Quote struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination" validate:"required"`
	City        string `json:"city"`
	WeightGrams int    `json:"weight_grams"`
}

// Option is one way of delivering a parcel
type Option struct {
	Provider  string          `json:"provider"`
	Service   string          `json:"service"`
	Cost      decimal.Decimal `json:"cost"`
	PeriodMin int             `json:"period_min"`
	PeriodMax int             `json:"period_max"`
	Currency  string          `json:"currency"`
}

// Provider is implemented by every delivery integration
type Provider interface {
	Name() string
	Calculate(ctx context.Context, quote Quote) ([]Option, error)
	CreateShipment(ctx context.Context, order *domain.Order) (trackingNumber string, err error)
}

// ErrUnknownProvider is returned for a delivery method with no registered provider
var ErrUnknownProvider = fmt.Errorf("unknown delivery provider: %w", domain.ErrValidation)

// Registry holds the configured providers and fans quote requests out to all of them.
type Registry struct {
	providers []Provider
	logger    *zap.Logger
}

// NewRegistry creates a registry with the given providers
func NewRegistry(logger *zap.Logger, providers ...Provider) *Registry {
	return &Registry{providers: providers, logger: logger}
}

// Get returns the provider registered under name
func (r *Registry) Get(name string) (Provider, error) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// Calculate asks every provider for options. A provider that fails is logged and
// skipped; the remaining options are returned cheapest first.
func (r *Registry) Calculate(ctx context.Context, quote Quote) []Option {
	if quote.WeightGrams <= 0 {
		quote.WeightGrams = DefaultWeightGrams
	}

	var (
		mu      sync.Mutex
		options []Option
	)

	var g errgroup.Group
	for _, p := range r.providers {
		g.Go(func() error {
			found, err := p.Calculate(ctx, quote)
			if err != nil {
				r.logger.Warn("Delivery provider failed to calculate",
					zap.String("provider", p.Name()),
					zap.String("destination", quote.Destination),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			options = append(options, found...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(options, func(i, j int) bool {
		if !options[i].Cost.Equal(options[j].Cost) {
			return options[i].Cost.LessThan(options[j].Cost)
		}
		return options[i].Provider < options[j].Provider
	})
	return options
}

// ParcelWeight estimates the weight of a set of items in grams. Perfume sizes are in ml
// and weigh about 1.2 g per ml; pigment sizes are already grams.
func ParcelWeight(items []WeightedItem) int {
	total := decimal.Zero
	for _, it := range items {
		per := decimal.NewFromInt(int64(it.Size))
		if it.Kind == domain.KindPerfume {
			per = per.Mul(perfumeDensity)
		}
		total = total.Add(per.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	grams := int(total.IntPart())
	if grams <= 0 {
		return DefaultWeightGrams
	}
	return grams
}

var perfumeDensity = decimal.RequireFromString("1.2")

// WeightedItem is the input to ParcelWeight
type WeightedItem struct {
	Kind     domain.Kind
	Size     int
	Quantity int
}
