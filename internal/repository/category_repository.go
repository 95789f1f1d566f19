package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
)

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	List(ctx context.Context, kind *domain.Kind) ([]*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

// Create inserts a new category. Names are unique per kind.
func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	query := `
		INSERT INTO categories (id, name, description, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		category.ID,
		category.Name,
		category.Description,
		category.Kind,
		category.CreatedAt,
	)

	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("category %q: %w", category.Name, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// List retrieves categories, optionally only those of one kind
func (r *categoryRepository) List(ctx context.Context, kind *domain.Kind) ([]*domain.Category, error) {
	query := `
		SELECT id, name, description, kind, created_at
		FROM categories
		WHERE ($1::text IS NULL OR kind = $1)
		ORDER BY kind ASC, name ASC
	`

	var kindArg any
	if kind != nil {
		kindArg = string(*kind)
	}

	rows, err := r.db.QueryContext(ctx, query, kindArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category := &domain.Category{}
		err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.Description,
			&category.Kind,
			&category.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// FindByID retrieves a category by ID
func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	query := `
		SELECT id, name, description, kind, created_at
		FROM categories
		WHERE id = $1
	`

	category := &domain.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.Kind,
		&category.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	return category, nil
}

// BrandRepository defines the interface for brand data access
type BrandRepository interface {
	Create(ctx context.Context, brand *domain.Brand) error
	List(ctx context.Context) ([]*domain.Brand, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error)
}

type brandRepository struct {
	db DBTX
}

// NewBrandRepository creates a new instance of BrandRepository
func NewBrandRepository(db DBTX) BrandRepository {
	return &brandRepository{db: db}
}

func (r *brandRepository) Create(ctx context.Context, brand *domain.Brand) error {
	query := `
		INSERT INTO brands (id, name, description, country, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, brand.ID, brand.Name, brand.Description, brand.Country, brand.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("brand %q: %w", brand.Name, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to create brand: %w", err)
	}

	return nil
}

func (r *brandRepository) List(ctx context.Context) ([]*domain.Brand, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, country, created_at
		FROM brands
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	defer rows.Close()

	brands := []*domain.Brand{}
	for rows.Next() {
		brand := &domain.Brand{}
		if err := rows.Scan(&brand.ID, &brand.Name, &brand.Description, &brand.Country, &brand.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, brand)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brands: %w", err)
	}

	return brands, nil
}

func (r *brandRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error) {
	brand := &domain.Brand{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, country, created_at
		FROM brands
		WHERE id = $1
	`, id).Scan(&brand.ID, &brand.Name, &brand.Description, &brand.Country, &brand.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBrandNotFound
		}
		return nil, fmt.Errorf("failed to find brand by ID: %w", err)
	}

	return brand, nil
}
