package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories and runs them inside a transaction when asked to.
type Store interface {
	Brands() BrandRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Variants() VariantRepository
	Promotions() PromotionRepository
	Orders() OrderRepository
	Loyalty() LoyaltyRepository
	Carts() CartRepository
	Audit() AuditRepository

	// WithinTx runs fn in a transaction. The Store passed to fn is bound to it; row locks
	// taken through it are held until fn returns. Calls nested inside fn reuse the
	// transaction. fn's error rolls back.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type store struct {
	db *sql.DB
	tx *sql.Tx
	q  DBTX
}

// NewStore creates a Store backed by postgres.
func NewStore(db *sql.DB) Store {
	return &store{db: db, q: db}
}

func (s *store) Brands() BrandRepository         { return &brandRepository{db: s.q} }
func (s *store) Categories() CategoryRepository  { return &categoryRepository{db: s.q} }
func (s *store) Products() ProductRepository     { return &productRepository{db: s.q} }
func (s *store) Variants() VariantRepository     { return &variantRepository{db: s.q} }
func (s *store) Promotions() PromotionRepository { return &promotionRepository{db: s.q} }
func (s *store) Orders() OrderRepository         { return &orderRepository{db: s.q} }
func (s *store) Loyalty() LoyaltyRepository      { return &loyaltyRepository{db: s.q} }
func (s *store) Carts() CartRepository           { return &cartRepository{db: s.q} }
func (s *store) Audit() AuditRepository          { return &auditRepository{db: s.q} }

func (s *store) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&store{db: s.db, tx: tx, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
