package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
)

// CartRepository defines the interface for cart data access
type CartRepository interface {
	// GetOrCreate returns the user's cart, creating an empty one if needed.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	// LockLines returns the cart's lines locked until the surrounding transaction ends.
	LockLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error)
	FindLine(ctx context.Context, cartID, lineID uuid.UUID) (*domain.CartLine, error)
	AddLine(ctx context.Context, line *domain.CartLine) error
	UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
}

type cartRepository struct {
	db DBTX
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db DBTX) CartRepository {
	return &cartRepository{db: db}
}

const cartLineColumns = `id, cart_id, product_id, kind, variant_id, quantity, created_at, updated_at`

func scanCartLine(row rowScanner) (*domain.CartLine, error) {
	var (
		line      domain.CartLine
		variantID uuid.NullUUID
	)
	err := row.Scan(&line.ID, &line.CartID, &line.ProductID, &line.Kind, &variantID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return nil, err
	}
	line.VariantID = uuidPtr(variantID)
	return &line, nil
}

func (r *cartRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	cart := &domain.Cart{}
	err = r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	if cart.Lines, err = r.lines(ctx, cart.ID, ""); err != nil {
		return nil, err
	}

	return cart, nil
}

func (r *cartRepository) LockLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	return r.lines(ctx, cartID, "FOR UPDATE")
}

func (r *cartRepository) lines(ctx context.Context, cartID uuid.UUID, lock string) ([]domain.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines WHERE cart_id = $1 ORDER BY created_at, id ` + lock

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, *line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) FindLine(ctx context.Context, cartID, lineID uuid.UUID) (*domain.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines WHERE cart_id = $1 AND id = $2`

	line, err := scanCartLine(r.db.QueryRowContext(ctx, query, cartID, lineID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartLineNotFound
		}
		return nil, fmt.Errorf("failed to find cart line: %w", err)
	}

	return line, nil
}

func (r *cartRepository) AddLine(ctx context.Context, line *domain.CartLine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_lines (`+cartLineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		line.ID,
		line.CartID,
		line.ProductID,
		line.Kind,
		nullableUUID(line.VariantID),
		line.Quantity,
		line.CreatedAt,
		line.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add cart line: %w", err)
	}

	return nil
}

func (r *cartRepository) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE cart_lines SET quantity = $2 WHERE id = $1`, lineID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}

	return expectOneRow(result, domain.ErrCartLineNotFound)
}

func (r *cartRepository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}

	return expectOneRow(result, domain.ErrCartLineNotFound)
}
