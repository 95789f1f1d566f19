package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Create inserts the order together with its items.
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// FindByIDForUpdate locks the order row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error)
	// Update saves status, stamps, totals, shipping and notes. Loyalty flags are left alone.
	Update(ctx context.Context, order *domain.Order) error
	// MarkLoyaltyAwarded flips loyalty_awarded once. It reports false when the flag was already set.
	MarkLoyaltyAwarded(ctx context.Context, id uuid.UUID, earned int) (bool, error)
	// MarkLoyaltyRefunded flips loyalty_refunded once. It reports false when the flag was already set.
	MarkLoyaltyRefunded(ctx context.Context, id uuid.UUID) (bool, error)
	Summary(ctx context.Context) (*domain.DashboardSummary, error)
}

type orderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db DBTX) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `
	id, user_id, status, payment_method, payment_id, delivery_method, tracking_number,
	recipient_name, phone, city, address, postal_code,
	subtotal, delivery_cost, loyalty_discount, total,
	loyalty_points_used, loyalty_points_earned, loyalty_awarded, loyalty_refunded,
	customer_notes, admin_notes, paid_at, shipped_at, delivered_at, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order                          domain.Order
		paidAt, shippedAt, deliveredAt sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.PaymentMethod,
		&order.PaymentID,
		&order.DeliveryMethod,
		&order.TrackingNumber,
		&order.RecipientName,
		&order.Phone,
		&order.City,
		&order.Address,
		&order.PostalCode,
		&order.Subtotal,
		&order.DeliveryCost,
		&order.LoyaltyDiscount,
		&order.Total,
		&order.LoyaltyPointsUsed,
		&order.LoyaltyPointsEarned,
		&order.LoyaltyAwarded,
		&order.LoyaltyRefunded,
		&order.CustomerNotes,
		&order.AdminNotes,
		&paidAt,
		&shippedAt,
		&deliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.PaidAt = timePtr(paidAt)
	order.ShippedAt = timePtr(shippedAt)
	order.DeliveredAt = timePtr(deliveredAt)
	return &order, nil
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.Status,
		order.PaymentMethod,
		order.PaymentID,
		order.DeliveryMethod,
		order.TrackingNumber,
		order.RecipientName,
		order.Phone,
		order.City,
		order.Address,
		order.PostalCode,
		order.Subtotal,
		order.DeliveryCost,
		order.LoyaltyDiscount,
		order.Total,
		order.LoyaltyPointsUsed,
		order.LoyaltyPointsEarned,
		order.LoyaltyAwarded,
		order.LoyaltyRefunded,
		order.CustomerNotes,
		order.AdminNotes,
		nullableTime(order.PaidAt),
		nullableTime(order.ShippedAt),
		nullableTime(order.DeliveredAt),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, kind, variant_id, product_name, product_sku,
				variant_label, quantity, unit_price, total_price
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Kind,
			nullableUUID(item.VariantID),
			item.ProductName,
			item.ProductSKU,
			item.VariantLabel,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findByID(ctx, id, "")
}

func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findByID(ctx, id, "FOR UPDATE")
}

func (r *orderRepository) findByID(ctx context.Context, id uuid.UUID, lock string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 ` + lock

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	if order.Items, err = r.items(ctx, id); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *orderRepository) items(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, kind, variant_id, product_name, product_sku,
		       variant_label, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var (
			item      domain.OrderItem
			variantID uuid.NullUUID
		)
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Kind,
			&variantID,
			&item.ProductName,
			&item.ProductSKU,
			&item.VariantLabel,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.VariantID = uuidPtr(variantID)
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	var statusArg any
	if status != nil {
		statusArg = string(*status)
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)`,
		userID, statusArg,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, statusArg, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $2, payment_id = $3, tracking_number = $4, subtotal = $5, delivery_cost = $6,
		    loyalty_discount = $7, total = $8, customer_notes = $9, admin_notes = $10,
		    paid_at = $11, shipped_at = $12, delivered_at = $13, updated_at = $14
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.Status,
		order.PaymentID,
		order.TrackingNumber,
		order.Subtotal,
		order.DeliveryCost,
		order.LoyaltyDiscount,
		order.Total,
		order.CustomerNotes,
		order.AdminNotes,
		nullableTime(order.PaidAt),
		nullableTime(order.ShippedAt),
		nullableTime(order.DeliveredAt),
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	return expectOneRow(result, domain.ErrOrderNotFound)
}

func (r *orderRepository) MarkLoyaltyAwarded(ctx context.Context, id uuid.UUID, earned int) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET loyalty_awarded = TRUE, loyalty_points_earned = $2 WHERE id = $1 AND NOT loyalty_awarded`,
		id, earned,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark loyalty awarded: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *orderRepository) MarkLoyaltyRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET loyalty_refunded = TRUE WHERE id = $1 AND NOT loyalty_refunded`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark loyalty refunded: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *orderRepository) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise orders: %w", err)
	}
	defer rows.Close()

	summary := &domain.DashboardSummary{
		Revenue:        decimal.Zero,
		CountsByStatus: map[domain.OrderStatus]int{},
	}
	for rows.Next() {
		var (
			status domain.OrderStatus
			count  int
			sum    decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan order summary: %w", err)
		}
		summary.CountsByStatus[status] = count
		summary.OrderCount += count
		if status.IsPaidOrLater() {
			summary.Revenue = summary.Revenue.Add(sum)
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order summary: %w", err)
	}

	return summary, nil
}
