package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"perfume-store/internal/domain"
	"perfume-store/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductFilter narrows a product listing. Zero values mean "no filter".
type ProductFilter struct {
	Kind       *domain.Kind
	BrandID    *uuid.UUID
	CategoryID *uuid.UUID
	Search     string
	InStock    *bool
	OnSaleAt   *time.Time
	Featured   *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  SortOrder
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// FindByIDForUpdate locks the product row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
	// FindPromotionTargets returns the products a promotion currently selects.
	FindPromotionTargets(ctx context.Context, promo *domain.Promotion) ([]*domain.Product, error)
	// LockPromotionTargets is FindPromotionTargets with the rows locked.
	LockPromotionTargets(ctx context.Context, promo *domain.Promotion) ([]*domain.Product, error)
	UpdateDiscount(ctx context.Context, id uuid.UUID, discount pricing.Discount, source *uuid.UUID) error
	// ClearDiscountBySource resets the discount of every product owned by the promotion.
	ClearDiscountBySource(ctx context.Context, promotionID uuid.UUID) (int, error)
	UpdateStock(ctx context.Context, id uuid.UUID, quantity int, inStock bool) error
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `
	p.id, p.kind, p.name, p.slug, p.sku, p.description, p.brand_id, p.category_id,
	p.base_price, p.size, p.discount_percentage, p.discount_price, p.discount_start_at,
	p.discount_end_at, p.discount_source, p.stock_quantity, p.in_stock, p.featured,
	p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		product  domain.Product
		price    decimal.NullDecimal
		startAt  sql.NullTime
		endAt    sql.NullTime
		sourceID uuid.NullUUID
	)

	err := row.Scan(
		&product.ID,
		&product.Kind,
		&product.Name,
		&product.Slug,
		&product.SKU,
		&product.Description,
		&product.BrandID,
		&product.CategoryID,
		&product.BasePrice,
		&product.Size,
		&product.Discount.Percentage,
		&price,
		&startAt,
		&endAt,
		&sourceID,
		&product.StockQuantity,
		&product.InStock,
		&product.Featured,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Discount.Price = price
	product.Discount.StartAt = timePtr(startAt)
	product.Discount.EndAt = timePtr(endAt)
	product.DiscountSource = uuidPtr(sourceID)
	return &product, nil
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (
			id, kind, name, slug, sku, description, brand_id, category_id, base_price, size,
			discount_percentage, discount_price, discount_start_at, discount_end_at, discount_source,
			stock_quantity, in_stock, featured, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Kind,
		product.Name,
		product.Slug,
		product.SKU,
		product.Description,
		product.BrandID,
		product.CategoryID,
		product.BasePrice,
		product.Size,
		product.Discount.Percentage,
		product.Discount.Price,
		nullableTime(product.Discount.StartAt),
		nullableTime(product.Discount.EndAt),
		nullableUUID(product.DiscountSource),
		product.StockQuantity,
		product.InStock,
		product.Featured,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("product slug %q: %w", product.Slug, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findByID(ctx, id, "")
}

func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findByID(ctx, id, "FOR UPDATE")
}

func (r *productRepository) findByID(ctx context.Context, id uuid.UUID, lock string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1 ` + lock

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves products with optional filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":           true,
		"base_price":     true,
		"created_at":     true,
		"stock_quantity": true,
	}

	sortBy := filter.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := filter.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	conditions := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Kind != nil {
		conditions = append(conditions, "p.kind = "+arg(string(*filter.Kind)))
	}
	if filter.BrandID != nil {
		conditions = append(conditions, "p.brand_id = "+arg(*filter.BrandID))
	}
	if filter.CategoryID != nil {
		conditions = append(conditions, "p.category_id = "+arg(*filter.CategoryID))
	}
	if filter.InStock != nil {
		conditions = append(conditions, "p.in_stock = "+arg(*filter.InStock))
	}
	if filter.Featured != nil {
		conditions = append(conditions, "p.featured = "+arg(*filter.Featured))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		pattern := arg("%" + q + "%")
		conditions = append(conditions, "(p.name ILIKE "+pattern+" OR p.description ILIKE "+pattern+" OR p.sku ILIKE "+pattern+")")
	}
	if filter.OnSaleAt != nil {
		at := arg(*filter.OnSaleAt)
		conditions = append(conditions, "(p.discount_percentage > 0 OR p.discount_price > 0)"+
			" AND (p.discount_start_at IS NULL OR p.discount_start_at <= "+at+")"+
			" AND (p.discount_end_at IS NULL OR p.discount_end_at >= "+at+")")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM products p " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products p
		%s
		ORDER BY p.%s %s, p.id
		LIMIT %s OFFSET %s
	`, productColumns, whereClause, sortBy, sortOrder, arg(pageSize), arg(offset(filter.Page, pageSize)))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *productRepository) FindPromotionTargets(ctx context.Context, promo *domain.Promotion) ([]*domain.Product, error) {
	return r.promotionTargets(ctx, promo, "")
}

func (r *productRepository) LockPromotionTargets(ctx context.Context, promo *domain.Promotion) ([]*domain.Product, error) {
	return r.promotionTargets(ctx, promo, "FOR UPDATE OF p")
}

func (r *productRepository) promotionTargets(ctx context.Context, promo *domain.Promotion, lock string) ([]*domain.Product, error) {
	var (
		where string
		args  []any
	)

	switch promo.Type {
	case domain.PromotionTypeBrand:
		if promo.BrandID == nil {
			return []*domain.Product{}, nil
		}
		where, args = "WHERE p.brand_id = $1", []any{*promo.BrandID}
	case domain.PromotionTypeCategory:
		if promo.CategoryID == nil {
			return []*domain.Product{}, nil
		}
		where, args = "WHERE p.category_id = $1", []any{*promo.CategoryID}
	case domain.PromotionTypeManual:
		where = "JOIN promotion_products pp ON pp.product_id = p.id WHERE pp.promotion_id = $1"
		args = []any{promo.ID}
	case domain.PromotionTypeAll:
	default:
		return nil, domain.NewValidationError("promotion", "type", fmt.Sprintf("unknown promotion type %q", promo.Type))
	}

	query := `SELECT ` + productColumns + ` FROM products p ` + where + ` ORDER BY p.id ` + lock

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve promotion targets: %w", err)
	}

	return collectProducts(rows)
}

// UpdateDiscount overwrites the discount fields and their owning promotion.
func (r *productRepository) UpdateDiscount(ctx context.Context, id uuid.UUID, discount pricing.Discount, source *uuid.UUID) error {
	query := `
		UPDATE products
		SET discount_percentage = $2, discount_price = $3, discount_start_at = $4,
		    discount_end_at = $5, discount_source = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		id,
		discount.Percentage,
		discount.Price,
		nullableTime(discount.StartAt),
		nullableTime(discount.EndAt),
		nullableUUID(source),
	)
	if err != nil {
		return fmt.Errorf("failed to update product discount: %w", err)
	}

	return expectOneRow(result, domain.ErrProductNotFound)
}

func (r *productRepository) ClearDiscountBySource(ctx context.Context, promotionID uuid.UUID) (int, error) {
	query := `
		UPDATE products
		SET discount_percentage = 0, discount_price = NULL, discount_start_at = NULL,
		    discount_end_at = NULL, discount_source = NULL
		WHERE discount_source = $1
	`

	result, err := r.db.ExecContext(ctx, query, promotionID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear promotion discounts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id uuid.UUID, quantity int, inStock bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity = $2, in_stock = $3 WHERE id = $1`,
		id, quantity, inStock,
	)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}

	return expectOneRow(result, domain.ErrProductNotFound)
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}
