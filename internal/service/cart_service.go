package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"perfume-store/internal/config"
	"perfume-store/internal/delivery"
	"perfume-store/internal/domain"
	"perfume-store/internal/notify"
	"perfume-store/internal/payment"
	"perfume-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LineInput adds a product (or one of its variants) to the cart
type LineInput struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,gt=0"`
}

// CheckoutInput carries the delivery and payment choices for an order
type CheckoutInput struct {
	PaymentMethod   string `json:"payment_method" validate:"required"`
	DeliveryMethod  string `json:"delivery_method" validate:"required"`
	DeliveryService string `json:"delivery_service"`
	RecipientName   string `json:"recipient_name" validate:"required,max=255"`
	Phone           string `json:"phone" validate:"required,max=50"`
	City            string `json:"city" validate:"max=100"`
	Address         string `json:"address" validate:"max=500"`
	PostalCode      string `json:"postal_code" validate:"max=20"`
	CustomerNotes   string `json:"customer_notes" validate:"max=2000"`
	LoyaltyPoints   int    `json:"loyalty_points" validate:"gte=0"`
}

// CheckoutResult is the created order and, when the provider accepted it, the payment
// to complete. A nil Payment can be retried through OrderService.StartPayment.
type CheckoutResult struct {
	Order   *domain.Order   `json:"order"`
	Payment *payment.Intent `json:"payment,omitempty"`
}

// CartService defines the interface for cart and checkout logic
type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartView, error)
	// AddLine merges into an existing line for the same product and variant.
	AddLine(ctx context.Context, userID uuid.UUID, input LineInput) (*domain.CartView, error)
	// UpdateLine sets a line's quantity; zero or less removes the line.
	UpdateLine(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*domain.CartView, error)
	RemoveLine(ctx context.Context, userID, lineID uuid.UUID) (*domain.CartView, error)
	QuoteDelivery(ctx context.Context, userID uuid.UUID, destination, city string) ([]delivery.Option, error)
	// Checkout turns the cart into an order in one transaction. Any line that cannot be
	// fulfilled aborts the whole checkout with a StockError.
	Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*CheckoutResult, error)
}

type cartService struct {
	store      repository.Store
	ledger     ledger
	payments   *payment.Registry
	deliveries *delivery.Registry
	origin     string
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(
	store repository.Store,
	loyalty config.LoyaltyConfig,
	deliveryCfg config.DeliveryConfig,
	payments *payment.Registry,
	deliveries *delivery.Registry,
	notifier notify.Notifier,
	logger *zap.Logger,
) CartService {
	return &cartService{
		store:      store,
		ledger:     ledger{cfg: loyalty, logger: logger},
		payments:   payments,
		deliveries: deliveries,
		origin:     deliveryCfg.OriginPostalCode,
		notifier:   notifier,
		logger:     logger,
	}
}

func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartView, error) {
	cart, err := s.store.Carts().GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return s.view(ctx, s.store, cart)
}

func (s *cartService) AddLine(ctx context.Context, userID uuid.UUID, input LineInput) (*domain.CartView, error) {
	if input.Quantity <= 0 {
		return nil, domain.NewValidationError("cart_line", "quantity", "must be positive")
	}

	var cart *domain.Cart
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		c, err := tx.Carts().GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		lines, err := tx.Carts().LockLines(ctx, c.ID)
		if err != nil {
			return err
		}

		product, err := loadProduct(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		variant, err := pickVariant(product, input.VariantID)
		if err != nil {
			return err
		}
		var variantID *uuid.UUID
		if variant != nil {
			variantID = &variant.ID
		}

		quantity := input.Quantity
		var existing *domain.CartLine
		for i := range lines {
			if lines[i].SameItem(product.ID, product.Kind, variantID) {
				existing = &lines[i]
				quantity += existing.Quantity
				break
			}
		}

		if err := checkStock(product, variant, quantity); err != nil {
			return err
		}

		if existing != nil {
			if err := tx.Carts().UpdateLineQuantity(ctx, existing.ID, quantity); err != nil {
				return err
			}
		} else {
			ts := now()
			line := &domain.CartLine{
				ID:        uuid.New(),
				CartID:    c.ID,
				ProductID: product.ID,
				Kind:      product.Kind,
				VariantID: variantID,
				Quantity:  quantity,
				CreatedAt: ts,
				UpdatedAt: ts,
			}
			if err := tx.Carts().AddLine(ctx, line); err != nil {
				return err
			}
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	return s.reload(ctx, cart.UserID)
}

func (s *cartService) UpdateLine(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*domain.CartView, error) {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		line, err := tx.Carts().FindLine(ctx, cart.ID, lineID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			return tx.Carts().DeleteLine(ctx, line.ID)
		}

		product, err := loadProduct(ctx, tx, line.ProductID)
		if err != nil {
			return err
		}
		variant, err := pickVariant(product, line.VariantID)
		if err != nil {
			return err
		}
		if err := checkStock(product, variant, quantity); err != nil {
			return err
		}
		return tx.Carts().UpdateLineQuantity(ctx, line.ID, quantity)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update cart line: %w", err)
	}
	return s.reload(ctx, userID)
}

func (s *cartService) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) (*domain.CartView, error) {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.Carts().FindLine(ctx, cart.ID, lineID); err != nil {
			return err
		}
		return tx.Carts().DeleteLine(ctx, lineID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove cart line: %w", err)
	}
	return s.reload(ctx, userID)
}

// QuoteDelivery returns the delivery options for the user's current cart.
func (s *cartService) QuoteDelivery(ctx context.Context, userID uuid.UUID, destination, city string) ([]delivery.Option, error) {
	if strings.TrimSpace(destination) == "" {
		return nil, domain.NewValidationError("delivery_quote", "postal_code", "is required")
	}
	cart, err := s.store.Carts().GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	weight, err := s.parcelWeight(ctx, cart.Lines)
	if err != nil {
		return nil, err
	}
	return s.deliveries.Calculate(ctx, delivery.Quote{
		Origin:      s.origin,
		Destination: destination,
		City:        city,
		WeightGrams: weight,
	}), nil
}

func (s *cartService) Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*CheckoutResult, error) {
	if _, err := s.payments.Get(input.PaymentMethod); err != nil {
		return nil, err
	}

	cart, err := s.store.Carts().GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	deliveryCost, err := s.deliveryCost(ctx, cart, input)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		lines, err := tx.Carts().LockLines(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}
		// lock rows in a fixed order so concurrent checkouts cannot deadlock
		slices.SortFunc(lines, func(a, b domain.CartLine) int {
			return cmp.Compare(lineKey(a), lineKey(b))
		})

		ts := now()
		o := &domain.Order{
			ID:             uuid.New(),
			UserID:         userID,
			Status:         domain.OrderStatusPending,
			PaymentMethod:  input.PaymentMethod,
			DeliveryMethod: input.DeliveryMethod,
			RecipientName:  input.RecipientName,
			Phone:          input.Phone,
			City:           input.City,
			Address:        input.Address,
			PostalCode:     input.PostalCode,
			CustomerNotes:  input.CustomerNotes,
			DeliveryCost:   deliveryCost,
			CreatedAt:      ts,
			UpdatedAt:      ts,
		}

		for _, line := range lines {
			item, err := s.reserve(ctx, tx, o, line)
			if err != nil {
				return err
			}
			o.Items = append(o.Items, *item)
			if err := tx.Carts().DeleteLine(ctx, line.ID); err != nil {
				return err
			}
		}
		o.Subtotal = o.ItemsSubtotal()

		redeemed, err := s.ledger.redeem(ctx, tx, o, input.LoyaltyPoints, ts)
		if err != nil {
			return err
		}
		if redeemed != nil {
			o.LoyaltyPointsUsed = redeemed.points
			o.LoyaltyDiscount = redeemed.value
		}
		o.RecomputeTotal()

		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if redeemed != nil {
			if err := redeemed.save(ctx, tx); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkout failed: %w", err)
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	s.notifier.Notify(ctx, notify.OrderEvent(notify.EventOrderCreated, order.ID, order.UserID,
		map[string]any{"total": order.Total.StringFixed(2)}))

	result := &CheckoutResult{Order: order}
	intent, err := createPayment(ctx, s.store, s.payments, order)
	if err != nil {
		s.logger.Warn("Payment could not be started",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return result, nil
	}
	result.Payment = intent
	return result, nil
}

// reserve locks the line's product (and variant), checks stock, decrements it and
// returns the order item snapshot.
func (s *cartService) reserve(ctx context.Context, tx repository.Store, o *domain.Order, line domain.CartLine) (*domain.OrderItem, error) {
	product, err := tx.Products().FindByIDForUpdate(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}

	variantID := line.VariantID
	if variantID == nil {
		// a product sold in variants is reserved through its default variant
		variants, err := tx.Variants().ListByProduct(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load variants: %w", err)
		}
		product.Variants = variants
		if len(variants) > 0 {
			def := product.DefaultVariant()
			if def == nil {
				return nil, domain.NewValidationError("cart_line", "variant_id", "is required for "+product.Name)
			}
			id := def.ID
			variantID = &id
		}
	}

	item := &domain.OrderItem{
		ID:          uuid.New(),
		OrderID:     o.ID,
		ProductID:   product.ID,
		Kind:        product.Kind,
		VariantID:   variantID,
		ProductName: product.Name,
		ProductSKU:  product.SKU,
		Quantity:    line.Quantity,
	}

	if variantID != nil {
		variant, err := tx.Variants().FindByIDForUpdate(ctx, *variantID)
		if err != nil {
			return nil, err
		}
		if variant.ProductID != product.ID {
			return nil, domain.ErrVariantNotFound
		}
		if err := checkStock(product, variant, line.Quantity); err != nil {
			return nil, err
		}
		remaining := variant.StockQuantity - line.Quantity
		if err := tx.Variants().UpdateStock(ctx, variant.ID, remaining, remaining > 0); err != nil {
			return nil, err
		}
		item.VariantLabel = product.Kind.SizeLabel(variant.Size)
		item.UnitPrice = product.VariantPrice(variant, o.CreatedAt)
	} else {
		if err := checkStock(product, nil, line.Quantity); err != nil {
			return nil, err
		}
		remaining := product.StockQuantity - line.Quantity
		if err := tx.Products().UpdateStock(ctx, product.ID, remaining, remaining > 0); err != nil {
			return nil, err
		}
		item.VariantLabel = product.Kind.SizeLabel(product.Size)
		item.UnitPrice = product.ResolvePrice(o.CreatedAt)
	}

	item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	return item, nil
}

// deliveryCost prices the chosen delivery method for the cart. An empty service picks
// the method's cheapest option.
func (s *cartService) deliveryCost(ctx context.Context, cart *domain.Cart, input CheckoutInput) (decimal.Decimal, error) {
	provider, err := s.deliveries.Get(input.DeliveryMethod)
	if err != nil {
		return decimal.Zero, err
	}
	weight, err := s.parcelWeight(ctx, cart.Lines)
	if err != nil {
		return decimal.Zero, err
	}

	options, err := provider.Calculate(ctx, delivery.Quote{
		Origin:      s.origin,
		Destination: input.PostalCode,
		City:        input.City,
		WeightGrams: weight,
	})
	if err != nil {
		s.logger.Error("Delivery provider failed to quote checkout",
			zap.String("provider", input.DeliveryMethod),
			zap.Error(err),
		)
		return decimal.Zero, fmt.Errorf("failed to price delivery: %w: %v", domain.ErrProvider, err)
	}

	var chosen *delivery.Option
	for i := range options {
		opt := &options[i]
		if input.DeliveryService != "" && opt.Service != input.DeliveryService {
			continue
		}
		if chosen == nil || opt.Cost.LessThan(chosen.Cost) {
			chosen = opt
		}
	}
	if chosen == nil {
		return decimal.Zero, domain.NewValidationError("checkout", "delivery_service", "is not offered for this destination")
	}
	return chosen.Cost, nil
}

func (s *cartService) parcelWeight(ctx context.Context, lines []domain.CartLine) (int, error) {
	items := make([]delivery.WeightedItem, 0, len(lines))
	for _, line := range lines {
		product, err := loadProduct(ctx, s.store, line.ProductID)
		if err != nil {
			return 0, err
		}
		size := product.Size
		if v, err := pickVariant(product, line.VariantID); err == nil && v != nil {
			size = v.Size
		}
		items = append(items, delivery.WeightedItem{Kind: product.Kind, Size: size, Quantity: line.Quantity})
	}
	return delivery.ParcelWeight(items), nil
}

func (s *cartService) reload(ctx context.Context, userID uuid.UUID) (*domain.CartView, error) {
	cart, err := s.store.Carts().GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return s.view(ctx, s.store, cart)
}

func (s *cartService) view(ctx context.Context, store repository.Store, cart *domain.Cart) (*domain.CartView, error) {
	asOf := now()
	view := &domain.CartView{CartID: cart.ID, Lines: []domain.PricedLine{}, Subtotal: decimal.Zero}

	for _, line := range cart.Lines {
		product, err := loadProduct(ctx, store, line.ProductID)
		if err != nil {
			return nil, err
		}

		priced := domain.PricedLine{CartLine: line, ProductName: product.Name}
		v, err := pickVariant(product, line.VariantID)
		switch {
		case errors.Is(err, domain.ErrValidation):
			// variants without a default: unavailable until the customer picks a size
			priced.VariantLabel = product.Kind.SizeLabel(product.Size)
			priced.UnitPrice = product.ResolvePrice(asOf)
		case err != nil:
			return nil, err
		case v != nil:
			priced.VariantLabel = product.Kind.SizeLabel(v.Size)
			priced.UnitPrice = product.VariantPrice(v, asOf)
			priced.InStock = v.InStock && v.StockQuantity >= line.Quantity
		default:
			priced.VariantLabel = product.Kind.SizeLabel(product.Size)
			priced.UnitPrice = product.ResolvePrice(asOf)
			priced.InStock = product.InStock && product.StockQuantity >= line.Quantity
		}
		priced.TotalPrice = priced.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))

		view.Lines = append(view.Lines, priced)
		view.ItemCount += line.Quantity
		view.Subtotal = view.Subtotal.Add(priced.TotalPrice)
	}
	return view, nil
}

// pickVariant resolves the variant a cart line refers to. Products sold in variants
// default to their default variant.
func pickVariant(product *domain.Product, variantID *uuid.UUID) (*domain.Variant, error) {
	if variantID != nil {
		v := product.FindVariant(*variantID)
		if v == nil {
			return nil, domain.ErrVariantNotFound
		}
		return v, nil
	}
	if len(product.Variants) == 0 {
		return nil, nil
	}
	if v := product.DefaultVariant(); v != nil {
		return v, nil
	}
	return nil, domain.NewValidationError("cart_line", "variant_id", "is required for this product")
}

// checkStock verifies quantity can be sold from the variant, or from the product when
// variant is nil.
func checkStock(product *domain.Product, variant *domain.Variant, quantity int) error {
	name := product.Name
	inStock, available := product.InStock, product.StockQuantity
	if variant != nil {
		name = product.Name + " " + product.Kind.SizeLabel(variant.Size)
		inStock, available = variant.InStock, variant.StockQuantity
	}
	if !inStock || available <= 0 {
		return &domain.StockError{Product: name, Requested: quantity, Available: 0, OutOfStock: true}
	}
	if quantity > available {
		return &domain.StockError{Product: name, Requested: quantity, Available: available}
	}
	return nil
}

func lineKey(l domain.CartLine) string {
	key := l.ProductID.String()
	if l.VariantID != nil {
		key += "/" + l.VariantID.String()
	}
	return key
}
