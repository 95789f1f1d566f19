package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
)

// PromotionRepository defines the interface for promotion data access
type PromotionRepository interface {
	Create(ctx context.Context, promo *domain.Promotion) error
	Update(ctx context.Context, promo *domain.Promotion) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	// List returns promotions ordered by priority, then creation time.
	List(ctx context.Context, activeOnly bool) ([]*domain.Promotion, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// ReplaceProducts sets the manual membership of a promotion.
	ReplaceProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) error
}

type promotionRepository struct {
	db DBTX
}

// NewPromotionRepository creates a new instance of PromotionRepository
func NewPromotionRepository(db DBTX) PromotionRepository {
	return &promotionRepository{db: db}
}

const promotionColumns = `
	id, title, description, promotion_type, slot, priority, active, start_at, end_at,
	discount_percentage, discount_price, brand_id, category_id, created_at, updated_at`

func scanPromotion(row rowScanner) (*domain.Promotion, error) {
	var (
		promo      domain.Promotion
		startAt    sql.NullTime
		endAt      sql.NullTime
		brandID    uuid.NullUUID
		categoryID uuid.NullUUID
	)

	err := row.Scan(
		&promo.ID,
		&promo.Title,
		&promo.Description,
		&promo.Type,
		&promo.Slot,
		&promo.Priority,
		&promo.Active,
		&startAt,
		&endAt,
		&promo.DiscountPercentage,
		&promo.DiscountPrice,
		&brandID,
		&categoryID,
		&promo.CreatedAt,
		&promo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	promo.StartAt = timePtr(startAt)
	promo.EndAt = timePtr(endAt)
	promo.BrandID = uuidPtr(brandID)
	promo.CategoryID = uuidPtr(categoryID)
	return &promo, nil
}

func (r *promotionRepository) Create(ctx context.Context, promo *domain.Promotion) error {
	query := `
		INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		promo.ID,
		promo.Title,
		promo.Description,
		promo.Type,
		promo.Slot,
		promo.Priority,
		promo.Active,
		nullableTime(promo.StartAt),
		nullableTime(promo.EndAt),
		promo.DiscountPercentage,
		promo.DiscountPrice,
		nullableUUID(promo.BrandID),
		nullableUUID(promo.CategoryID),
		promo.CreatedAt,
		promo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create promotion: %w", err)
	}

	if promo.Type == domain.PromotionTypeManual {
		return r.ReplaceProducts(ctx, promo.ID, promo.ProductIDs)
	}

	return nil
}

// Update persists the definition. The active flag is only changed through SetActive.
func (r *promotionRepository) Update(ctx context.Context, promo *domain.Promotion) error {
	query := `
		UPDATE promotions
		SET title = $2, description = $3, promotion_type = $4, slot = $5, priority = $6,
		    start_at = $7, end_at = $8, discount_percentage = $9, discount_price = $10,
		    brand_id = $11, category_id = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		promo.ID,
		promo.Title,
		promo.Description,
		promo.Type,
		promo.Slot,
		promo.Priority,
		nullableTime(promo.StartAt),
		nullableTime(promo.EndAt),
		promo.DiscountPercentage,
		promo.DiscountPrice,
		nullableUUID(promo.BrandID),
		nullableUUID(promo.CategoryID),
	)
	if err != nil {
		return fmt.Errorf("failed to update promotion: %w", err)
	}

	if err := expectOneRow(result, domain.ErrPromotionNotFound); err != nil {
		return err
	}

	ids := promo.ProductIDs
	if promo.Type != domain.PromotionTypeManual {
		ids = nil
	}
	return r.ReplaceProducts(ctx, promo.ID, ids)
}

func (r *promotionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	return r.findByID(ctx, id, "")
}

func (r *promotionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	return r.findByID(ctx, id, "FOR UPDATE")
}

func (r *promotionRepository) findByID(ctx context.Context, id uuid.UUID, lock string) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1 ` + lock

	promo, err := scanPromotion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, fmt.Errorf("failed to find promotion by ID: %w", err)
	}

	if promo.Type == domain.PromotionTypeManual {
		if promo.ProductIDs, err = r.productIDs(ctx, id); err != nil {
			return nil, err
		}
	}

	return promo, nil
}

func (r *promotionRepository) productIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id FROM promotion_products WHERE promotion_id = $1 ORDER BY product_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotion products: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var productID uuid.UUID
		if err := rows.Scan(&productID); err != nil {
			return nil, fmt.Errorf("failed to scan promotion product: %w", err)
		}
		ids = append(ids, productID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promotion products: %w", err)
	}

	return ids, nil
}

func (r *promotionRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Promotion, error) {
	query := `
		SELECT ` + promotionColumns + `
		FROM promotions
		WHERE ($1 = FALSE OR active = TRUE)
		ORDER BY priority ASC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	promotions := []*domain.Promotion{}
	for rows.Next() {
		promo, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promotions = append(promotions, promo)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promotions: %w", err)
	}

	return promotions, nil
}

func (r *promotionRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE promotions SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to set promotion active flag: %w", err)
	}

	return expectOneRow(result, domain.ErrPromotionNotFound)
}

func (r *promotionRepository) ReplaceProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM promotion_products WHERE promotion_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear promotion products: %w", err)
	}

	for _, productID := range productIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO promotion_products (promotion_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id, productID,
		)
		if err != nil {
			return fmt.Errorf("failed to add product %s to promotion: %w", productID, err)
		}
	}

	return nil
}
