// Package repotest provides an in-memory repository.Store for service and handler tests.
// Transactions are serialised with a mutex, which stands in for postgres row locks, and a
// failed transaction restores the snapshot taken when it began.
package repotest

import (
	"context"
	"maps"
	"slices"
	"sync"

	"perfume-store/internal/domain"
	"perfume-store/internal/repository"

	"github.com/google/uuid"
)

type memData struct {
	mu sync.Mutex

	brands     map[uuid.UUID]domain.Brand
	categories map[uuid.UUID]domain.Category
	products   map[uuid.UUID]domain.Product
	variants   map[uuid.UUID]domain.Variant
	promotions map[uuid.UUID]domain.Promotion
	orders     map[uuid.UUID]domain.Order
	accounts   map[uuid.UUID]domain.LoyaltyAccount
	txns       []domain.LoyaltyTransaction
	carts      map[uuid.UUID]domain.Cart
	lines      map[uuid.UUID]domain.CartLine
	audit      []domain.AuditEntry
}

type snapshot struct {
	brands     map[uuid.UUID]domain.Brand
	categories map[uuid.UUID]domain.Category
	products   map[uuid.UUID]domain.Product
	variants   map[uuid.UUID]domain.Variant
	promotions map[uuid.UUID]domain.Promotion
	orders     map[uuid.UUID]domain.Order
	accounts   map[uuid.UUID]domain.LoyaltyAccount
	txns       []domain.LoyaltyTransaction
	carts      map[uuid.UUID]domain.Cart
	lines      map[uuid.UUID]domain.CartLine
	audit      []domain.AuditEntry
}

func (d *memData) snapshot() snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	promotions := make(map[uuid.UUID]domain.Promotion, len(d.promotions))
	for id, p := range d.promotions {
		p.ProductIDs = slices.Clone(p.ProductIDs)
		promotions[id] = p
	}
	orders := make(map[uuid.UUID]domain.Order, len(d.orders))
	for id, o := range d.orders {
		o.Items = slices.Clone(o.Items)
		orders[id] = o
	}

	return snapshot{
		brands:     maps.Clone(d.brands),
		categories: maps.Clone(d.categories),
		products:   maps.Clone(d.products),
		variants:   maps.Clone(d.variants),
		promotions: promotions,
		orders:     orders,
		accounts:   maps.Clone(d.accounts),
		txns:       slices.Clone(d.txns),
		carts:      maps.Clone(d.carts),
		lines:      maps.Clone(d.lines),
		audit:      slices.Clone(d.audit),
	}
}

func (d *memData) restore(s snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.brands = s.brands
	d.categories = s.categories
	d.products = s.products
	d.variants = s.variants
	d.promotions = s.promotions
	d.orders = s.orders
	d.accounts = s.accounts
	d.txns = s.txns
	d.carts = s.carts
	d.lines = s.lines
	d.audit = s.audit
}

// Store is an in-memory repository.Store.
type Store struct {
	data *memData
	txMu *sync.Mutex
	inTx bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data: &memData{
			brands:     map[uuid.UUID]domain.Brand{},
			categories: map[uuid.UUID]domain.Category{},
			products:   map[uuid.UUID]domain.Product{},
			variants:   map[uuid.UUID]domain.Variant{},
			promotions: map[uuid.UUID]domain.Promotion{},
			orders:     map[uuid.UUID]domain.Order{},
			accounts:   map[uuid.UUID]domain.LoyaltyAccount{},
			carts:      map[uuid.UUID]domain.Cart{},
			lines:      map[uuid.UUID]domain.CartLine{},
		},
		txMu: &sync.Mutex{},
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Brands() repository.BrandRepository         { return brandRepo{s.data} }
func (s *Store) Categories() repository.CategoryRepository  { return categoryRepo{s.data} }
func (s *Store) Products() repository.ProductRepository     { return productRepo{s.data} }
func (s *Store) Variants() repository.VariantRepository     { return variantRepo{s.data} }
func (s *Store) Promotions() repository.PromotionRepository { return promotionRepo{s.data} }
func (s *Store) Orders() repository.OrderRepository         { return orderRepo{s.data} }
func (s *Store) Loyalty() repository.LoyaltyRepository      { return loyaltyRepo{s.data} }
func (s *Store) Carts() repository.CartRepository           { return cartRepo{s.data} }
func (s *Store) Audit() repository.AuditRepository          { return auditRepo{s.data} }

func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	before := s.data.snapshot()
	if err := fn(&Store{data: s.data, txMu: s.txMu, inTx: true}); err != nil {
		s.data.restore(before)
		return err
	}
	return nil
}

// AuditEntries returns every recorded audit entry.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return slices.Clone(s.data.audit)
}
