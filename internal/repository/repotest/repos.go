package repotest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/pricing"
	"perfume-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type brandRepo struct{ d *memData }

func (r brandRepo) Create(ctx context.Context, brand *domain.Brand) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, b := range r.d.brands {
		if b.Name == brand.Name {
			return fmt.Errorf("brand %q: %w", brand.Name, domain.ErrDuplicateName)
		}
	}
	r.d.brands[brand.ID] = *brand
	return nil
}

func (r brandRepo) List(ctx context.Context) ([]*domain.Brand, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := []*domain.Brand{}
	for _, b := range r.d.brands {
		out = append(out, &b)
	}
	slices.SortFunc(out, func(a, b *domain.Brand) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (r brandRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	b, ok := r.d.brands[id]
	if !ok {
		return nil, domain.ErrBrandNotFound
	}
	return &b, nil
}

type categoryRepo struct{ d *memData }

func (r categoryRepo) Create(ctx context.Context, category *domain.Category) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, c := range r.d.categories {
		if c.Name == category.Name && c.Kind == category.Kind {
			return fmt.Errorf("category %q: %w", category.Name, domain.ErrDuplicateName)
		}
	}
	r.d.categories[category.ID] = *category
	return nil
}

func (r categoryRepo) List(ctx context.Context, kind *domain.Kind) ([]*domain.Category, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := []*domain.Category{}
	for _, c := range r.d.categories {
		if kind != nil && c.Kind != *kind {
			continue
		}
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *domain.Category) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (r categoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	c, ok := r.d.categories[id]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	return &c, nil
}

type productRepo struct{ d *memData }

func (r productRepo) Create(ctx context.Context, product *domain.Product) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, p := range r.d.products {
		if p.Slug == product.Slug {
			return fmt.Errorf("product slug %q: %w", product.Slug, domain.ErrDuplicateName)
		}
	}
	p := *product
	p.Variants = nil
	r.d.products[p.ID] = p
	return nil
}

func (r productRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (r productRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.FindByID(ctx, id)
}

func (r productRepo) List(ctx context.Context, f repository.ProductFilter) ([]*domain.Product, int, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	matched := []*domain.Product{}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	for _, p := range r.d.products {
		switch {
		case f.Kind != nil && p.Kind != *f.Kind,
			f.BrandID != nil && p.BrandID != *f.BrandID,
			f.CategoryID != nil && p.CategoryID != *f.CategoryID,
			f.InStock != nil && p.InStock != *f.InStock,
			f.Featured != nil && p.Featured != *f.Featured,
			f.OnSaleAt != nil && !pricing.IsOnSale(p.Discount, *f.OnSaleAt):
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Description+" "+p.SKU), q) {
			continue
		}
		matched = append(matched, &p)
	}

	slices.SortFunc(matched, func(a, b *domain.Product) int {
		var c int
		switch f.SortBy {
		case "name":
			c = cmp.Compare(a.Name, b.Name)
		case "base_price":
			c = a.BasePrice.Cmp(b.BasePrice)
		case "stock_quantity":
			c = cmp.Compare(a.StockQuantity, b.StockQuantity)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if f.SortOrder != repository.SortOrderAsc {
			c = -c
		}
		return cmp.Or(c, strings.Compare(a.ID.String(), b.ID.String()))
	})

	total := len(matched)
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := max(f.Page, 1)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	return matched[start:end], total, nil
}

func (r productRepo) FindPromotionTargets(ctx context.Context, promo *domain.Promotion) ([]*domain.Product, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	var members []uuid.UUID
	if promo.Type == domain.PromotionTypeManual {
		if stored, ok := r.d.promotions[promo.ID]; ok {
			members = stored.ProductIDs
		}
	}

	out := []*domain.Product{}
	for _, p := range r.d.products {
		var hit bool
		switch promo.Type {
		case domain.PromotionTypeBrand:
			hit = promo.BrandID != nil && p.BrandID == *promo.BrandID
		case domain.PromotionTypeCategory:
			hit = promo.CategoryID != nil && p.CategoryID == *promo.CategoryID
		case domain.PromotionTypeManual:
			hit = slices.Contains(members, p.ID)
		case domain.PromotionTypeAll:
			hit = true
		default:
			return nil, domain.NewValidationError("promotion", "type", fmt.Sprintf("unknown promotion type %q", promo.Type))
		}
		if hit {
			out = append(out, &p)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Product) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return out, nil
}

func (r productRepo) LockPromotionTargets(ctx context.Context, promo *domain.Promotion) ([]*domain.Product, error) {
	return r.FindPromotionTargets(ctx, promo)
}

func (r productRepo) UpdateDiscount(ctx context.Context, id uuid.UUID, d pricing.Discount, source *uuid.UUID) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Discount = d
	p.DiscountSource = source
	p.UpdatedAt = time.Now().UTC()
	r.d.products[id] = p
	return nil
}

func (r productRepo) ClearDiscountBySource(ctx context.Context, promotionID uuid.UUID) (int, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cleared := 0
	for id, p := range r.d.products {
		if p.DiscountSource == nil || *p.DiscountSource != promotionID {
			continue
		}
		p.ClearDiscount()
		p.UpdatedAt = time.Now().UTC()
		r.d.products[id] = p
		cleared++
	}
	return cleared, nil
}

func (r productRepo) UpdateStock(ctx context.Context, id uuid.UUID, quantity int, inStock bool) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if quantity < 0 {
		return fmt.Errorf("stock of product %s would go negative: %w", id, domain.ErrIntegrity)
	}
	p.StockQuantity = quantity
	p.InStock = inStock
	r.d.products[id] = p
	return nil
}

type variantRepo struct{ d *memData }

func (r variantRepo) Create(ctx context.Context, v *domain.Variant) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, existing := range r.d.variants {
		if existing.ProductID == v.ProductID && existing.Size == v.Size {
			return domain.NewValidationError("variant", "size", fmt.Sprintf("a variant of size %d already exists", v.Size))
		}
	}
	r.d.variants[v.ID] = *v
	return nil
}

func (r variantRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	v, ok := r.d.variants[id]
	if !ok {
		return nil, domain.ErrVariantNotFound
	}
	return &v, nil
}

func (r variantRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	return r.FindByID(ctx, id)
}

func (r variantRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := []domain.Variant{}
	for _, v := range r.d.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b domain.Variant) int { return cmp.Compare(a.Size, b.Size) })
	return out, nil
}

func (r variantRepo) CountByProduct(ctx context.Context, productID uuid.UUID) (int, error) {
	variants, err := r.ListByProduct(ctx, productID)
	return len(variants), err
}

func (r variantRepo) SetDefault(ctx context.Context, productID, variantID uuid.UUID) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	touched := 0
	for id, v := range r.d.variants {
		if v.ProductID != productID {
			continue
		}
		v.IsDefault = id == variantID
		r.d.variants[id] = v
		touched++
	}
	if touched == 0 {
		return domain.ErrVariantNotFound
	}
	return nil
}

func (r variantRepo) UpdateStock(ctx context.Context, id uuid.UUID, quantity int, inStock bool) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	v, ok := r.d.variants[id]
	if !ok {
		return domain.ErrVariantNotFound
	}
	if quantity < 0 {
		return fmt.Errorf("stock of variant %s would go negative: %w", id, domain.ErrIntegrity)
	}
	v.StockQuantity = quantity
	v.InStock = inStock
	r.d.variants[id] = v
	return nil
}

type promotionRepo struct{ d *memData }

func (r promotionRepo) Create(ctx context.Context, promo *domain.Promotion) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p := *promo
	p.ProductIDs = slices.Clone(promo.ProductIDs)
	if p.Type != domain.PromotionTypeManual {
		p.ProductIDs = nil
	}
	r.d.promotions[p.ID] = p
	return nil
}

func (r promotionRepo) Update(ctx context.Context, promo *domain.Promotion) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	existing, ok := r.d.promotions[promo.ID]
	if !ok {
		return domain.ErrPromotionNotFound
	}
	p := *promo
	p.Active = existing.Active
	p.ProductIDs = slices.Clone(promo.ProductIDs)
	if p.Type != domain.PromotionTypeManual {
		p.ProductIDs = nil
	}
	p.UpdatedAt = time.Now().UTC()
	r.d.promotions[p.ID] = p
	return nil
}

func (r promotionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.promotions[id]
	if !ok {
		return nil, domain.ErrPromotionNotFound
	}
	p.ProductIDs = slices.Clone(p.ProductIDs)
	return &p, nil
}

func (r promotionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	return r.FindByID(ctx, id)
}

func (r promotionRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Promotion, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := []*domain.Promotion{}
	for _, p := range r.d.promotions {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *domain.Promotion) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), a.CreatedAt.Compare(b.CreatedAt))
	})
	return out, nil
}

func (r promotionRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.promotions[id]
	if !ok {
		return domain.ErrPromotionNotFound
	}
	p.Active = active
	r.d.promotions[id] = p
	return nil
}

func (r promotionRepo) ReplaceProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.promotions[id]
	if !ok {
		return domain.ErrPromotionNotFound
	}
	p.ProductIDs = slices.Clone(productIDs)
	r.d.promotions[id] = p
	return nil
}

type orderRepo struct{ d *memData }

func (r orderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o := *order
	o.Items = slices.Clone(order.Items)
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	r.d.orders[o.ID] = o
	return nil
}

func (r orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o, ok := r.d.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (r orderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r orderRepo) ListByUser(ctx context.Context, userID uuid.UUID, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	matched := []*domain.Order{}
	for _, o := range r.d.orders {
		if o.UserID != userID || (status != nil && o.Status != *status) {
			continue
		}
		matched = append(matched, &o)
	}
	slices.SortFunc(matched, func(a, b *domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })

	if pageSize <= 0 {
		pageSize = 20
	}
	total := len(matched)
	start := min((max(page, 1)-1)*pageSize, total)
	end := min(start+pageSize, total)
	return matched[start:end], total, nil
}

func (r orderRepo) Update(ctx context.Context, order *domain.Order) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	stored, ok := r.d.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	stored.Status = order.Status
	stored.PaymentID = order.PaymentID
	stored.TrackingNumber = order.TrackingNumber
	stored.Subtotal = order.Subtotal
	stored.DeliveryCost = order.DeliveryCost
	stored.LoyaltyDiscount = order.LoyaltyDiscount
	stored.Total = order.Total
	stored.CustomerNotes = order.CustomerNotes
	stored.AdminNotes = order.AdminNotes
	stored.PaidAt = order.PaidAt
	stored.ShippedAt = order.ShippedAt
	stored.DeliveredAt = order.DeliveredAt
	stored.UpdatedAt = order.UpdatedAt
	r.d.orders[order.ID] = stored
	return nil
}

func (r orderRepo) MarkLoyaltyAwarded(ctx context.Context, id uuid.UUID, earned int) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o, ok := r.d.orders[id]
	if !ok || o.LoyaltyAwarded {
		return false, nil
	}
	o.LoyaltyAwarded = true
	o.LoyaltyPointsEarned = earned
	r.d.orders[id] = o
	return true, nil
}

func (r orderRepo) MarkLoyaltyRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o, ok := r.d.orders[id]
	if !ok || o.LoyaltyRefunded {
		return false, nil
	}
	o.LoyaltyRefunded = true
	r.d.orders[id] = o
	return true, nil
}

func (r orderRepo) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	summary := &domain.DashboardSummary{Revenue: decimal.Zero, CountsByStatus: map[domain.OrderStatus]int{}}
	for _, o := range r.d.orders {
		summary.CountsByStatus[o.Status]++
		summary.OrderCount++
		if o.Status.IsPaidOrLater() {
			summary.Revenue = summary.Revenue.Add(o.Total)
		}
	}
	return summary, nil
}

type loyaltyRepo struct{ d *memData }

func (r loyaltyRepo) CreateAccount(ctx context.Context, account *domain.LoyaltyAccount) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.accounts[account.UserID]; ok {
		return false, nil
	}
	r.d.accounts[account.UserID] = *account
	return true, nil
}

func (r loyaltyRepo) FindAccount(ctx context.Context, userID uuid.UUID) (*domain.LoyaltyAccount, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	a, ok := r.d.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (r loyaltyRepo) FindAccountForUpdate(ctx context.Context, userID uuid.UUID) (*domain.LoyaltyAccount, error) {
	return r.FindAccount(ctx, userID)
}

func (r loyaltyRepo) UpdateAccount(ctx context.Context, account *domain.LoyaltyAccount) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.accounts[account.UserID]; !ok {
		return domain.ErrAccountNotFound
	}
	if account.Balance < 0 || account.LifetimeEarned < 0 || account.LifetimeRedeemed < 0 {
		return fmt.Errorf("loyalty account %s would go negative: %w", account.UserID, domain.ErrIntegrity)
	}
	r.d.accounts[account.UserID] = *account
	return nil
}

func (r loyaltyRepo) AppendTransaction(ctx context.Context, txn *domain.LoyaltyTransaction) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.txns = append(r.d.txns, *txn)
	return nil
}

func (r loyaltyRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LoyaltyTransaction, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	out := []domain.LoyaltyTransaction{}
	for i := len(r.d.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if r.d.txns[i].UserID == userID {
			out = append(out, r.d.txns[i])
		}
	}
	return out, nil
}

type cartRepo struct{ d *memData }

func (r cartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	cart, ok := r.d.carts[userID]
	if !ok {
		now := time.Now().UTC()
		cart = domain.Cart{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
		r.d.carts[userID] = cart
	}
	cart.Lines = r.linesLocked(cart.ID)
	return &cart, nil
}

func (r cartRepo) linesLocked(cartID uuid.UUID) []domain.CartLine {
	out := []domain.CartLine{}
	for _, l := range r.d.lines {
		if l.CartID == cartID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b domain.CartLine) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out
}

func (r cartRepo) LockLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return r.linesLocked(cartID), nil
}

func (r cartRepo) FindLine(ctx context.Context, cartID, lineID uuid.UUID) (*domain.CartLine, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	l, ok := r.d.lines[lineID]
	if !ok || l.CartID != cartID {
		return nil, domain.ErrCartLineNotFound
	}
	return &l, nil
}

func (r cartRepo) AddLine(ctx context.Context, line *domain.CartLine) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.lines[line.ID] = *line
	return nil
}

func (r cartRepo) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	l, ok := r.d.lines[lineID]
	if !ok {
		return domain.ErrCartLineNotFound
	}
	l.Quantity = quantity
	l.UpdatedAt = time.Now().UTC()
	r.d.lines[lineID] = l
	return nil
}

func (r cartRepo) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if _, ok := r.d.lines[lineID]; !ok {
		return domain.ErrCartLineNotFound
	}
	delete(r.d.lines, lineID)
	return nil
}

type auditRepo struct{ d *memData }

func (r auditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.audit = append(r.d.audit, *entry)
	return nil
}

func (r auditRepo) ListByObject(ctx context.Context, objectType, objectID string) ([]domain.AuditEntry, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := []domain.AuditEntry{}
	for _, e := range r.d.audit {
		if e.ObjectType == objectType && e.ObjectID == objectID {
			out = append(out, e)
		}
	}
	return out, nil
}
