package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
)

// VariantRepository defines the interface for product variant data access
type VariantRepository interface {
	Create(ctx context.Context, variant *domain.Variant) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Variant, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Variant, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int, error)
	// SetDefault flags variantID as the product's only default variant in one statement.
	SetDefault(ctx context.Context, productID, variantID uuid.UUID) error
	UpdateStock(ctx context.Context, id uuid.UUID, quantity int, inStock bool) error
}

type variantRepository struct {
	db DBTX
}

// NewVariantRepository creates a new instance of VariantRepository
func NewVariantRepository(db DBTX) VariantRepository {
	return &variantRepository{db: db}
}

const variantColumns = `
	id, product_id, size, price, discount_percentage, discount_price,
	stock_quantity, in_stock, is_default, created_at`

func scanVariant(row rowScanner) (*domain.Variant, error) {
	v := &domain.Variant{}
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.Size,
		&v.Price,
		&v.DiscountPercentage,
		&v.DiscountPrice,
		&v.StockQuantity,
		&v.InStock,
		&v.IsDefault,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *variantRepository) Create(ctx context.Context, v *domain.Variant) error {
	query := `
		INSERT INTO variants (` + variantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		v.ID,
		v.ProductID,
		v.Size,
		v.Price,
		v.DiscountPercentage,
		v.DiscountPrice,
		v.StockQuantity,
		v.InStock,
		v.IsDefault,
		v.CreatedAt,
	)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return domain.NewValidationError("variant", "size", fmt.Sprintf("a variant of size %d already exists", v.Size))
		case pgExclusionViolation:
			return fmt.Errorf("product %s already has a default variant: %w", v.ProductID, domain.ErrIntegrity)
		}
		return fmt.Errorf("failed to create variant: %w", err)
	}

	return nil
}

func (r *variantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	return r.findByID(ctx, id, "")
}

func (r *variantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	return r.findByID(ctx, id, "FOR UPDATE")
}

func (r *variantRepository) findByID(ctx context.Context, id uuid.UUID, lock string) (*domain.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE id = $1 ` + lock

	v, err := scanVariant(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVariantNotFound
		}
		return nil, fmt.Errorf("failed to find variant by ID: %w", err)
	}

	return v, nil
}

func (r *variantRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM variants WHERE product_id = $1 ORDER BY size ASC`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	variants := []domain.Variant{}
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, *v)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return variants, nil
}

func (r *variantRepository) CountByProduct(ctx context.Context, productID uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM variants WHERE product_id = $1`, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count variants: %w", err)
	}
	return count, nil
}

func (r *variantRepository) SetDefault(ctx context.Context, productID, variantID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE variants SET is_default = (id = $2) WHERE product_id = $1`,
		productID, variantID,
	)
	if err != nil {
		if pgCode(err) == pgExclusionViolation {
			return fmt.Errorf("product %s has more than one default variant: %w", productID, domain.ErrIntegrity)
		}
		return fmt.Errorf("failed to set default variant: %w", err)
	}

	return expectOneRow(result, domain.ErrVariantNotFound)
}

func (r *variantRepository) UpdateStock(ctx context.Context, id uuid.UUID, quantity int, inStock bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE variants SET stock_quantity = $2, in_stock = $3 WHERE id = $1`,
		id, quantity, inStock,
	)
	if err != nil {
		return fmt.Errorf("failed to update variant stock: %w", err)
	}

	return expectOneRow(result, domain.ErrVariantNotFound)
}
