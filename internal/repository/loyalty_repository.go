package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
)

// LoyaltyRepository defines the interface for loyalty accounts and their ledger
type LoyaltyRepository interface {
	// CreateAccount inserts an empty account. It reports false when one already exists.
	CreateAccount(ctx context.Context, account *domain.LoyaltyAccount) (bool, error)
	FindAccount(ctx context.Context, userID uuid.UUID) (*domain.LoyaltyAccount, error)
	// FindAccountForUpdate locks the account row until the surrounding transaction ends.
	FindAccountForUpdate(ctx context.Context, userID uuid.UUID) (*domain.LoyaltyAccount, error)
	UpdateAccount(ctx context.Context, account *domain.LoyaltyAccount) error
	AppendTransaction(ctx context.Context, txn *domain.LoyaltyTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LoyaltyTransaction, error)
}

type loyaltyRepository struct {
	db DBTX
}

// NewLoyaltyRepository creates a new instance of LoyaltyRepository
func NewLoyaltyRepository(db DBTX) LoyaltyRepository {
	return &loyaltyRepository{db: db}
}

func (r *loyaltyRepository) CreateAccount(ctx context.Context, account *domain.LoyaltyAccount) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO loyalty_accounts (user_id, balance, lifetime_earned, lifetime_redeemed, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO NOTHING
	`,
		account.UserID,
		account.Balance,
		account.LifetimeEarned,
		account.LifetimeRedeemed,
		account.Tier,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create loyalty account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *loyaltyRepository) FindAccount(ctx context.Context, userID uuid.UUID) (*domain.LoyaltyAccount, error) {
	return r.findAccount(ctx, userID, "")
}

func (r *loyaltyRepository) FindAccountForUpdate(ctx context.Context, userID uuid.UUID) (*domain.LoyaltyAccount, error) {
	return r.findAccount(ctx, userID, "FOR UPDATE")
}

func (r *loyaltyRepository) findAccount(ctx context.Context, userID uuid.UUID, lock string) (*domain.LoyaltyAccount, error) {
	query := `
		SELECT user_id, balance, lifetime_earned, lifetime_redeemed, tier, created_at, updated_at
		FROM loyalty_accounts
		WHERE user_id = $1 ` + lock

	account := &domain.LoyaltyAccount{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&account.UserID,
		&account.Balance,
		&account.LifetimeEarned,
		&account.LifetimeRedeemed,
		&account.Tier,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find loyalty account: %w", err)
	}

	return account, nil
}

func (r *loyaltyRepository) UpdateAccount(ctx context.Context, account *domain.LoyaltyAccount) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE loyalty_accounts
		SET balance = $2, lifetime_earned = $3, lifetime_redeemed = $4, tier = $5
		WHERE user_id = $1
	`,
		account.UserID,
		account.Balance,
		account.LifetimeEarned,
		account.LifetimeRedeemed,
		account.Tier,
	)
	if err != nil {
		return fmt.Errorf("failed to update loyalty account: %w", err)
	}

	return expectOneRow(result, domain.ErrAccountNotFound)
}

func (r *loyaltyRepository) AppendTransaction(ctx context.Context, txn *domain.LoyaltyTransaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO loyalty_transactions (id, user_id, transaction_type, points, balance_after, order_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		txn.ID,
		txn.UserID,
		txn.Type,
		txn.Points,
		txn.BalanceAfter,
		nullableUUID(txn.OrderID),
		txn.Description,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append loyalty transaction: %w", err)
	}

	return nil
}

func (r *loyaltyRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LoyaltyTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, transaction_type, points, balance_after, order_id, description, created_at
		FROM loyalty_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list loyalty transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.LoyaltyTransaction{}
	for rows.Next() {
		var (
			txn     domain.LoyaltyTransaction
			orderID uuid.NullUUID
		)
		err := rows.Scan(&txn.ID, &txn.UserID, &txn.Type, &txn.Points, &txn.BalanceAfter, &orderID, &txn.Description, &txn.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loyalty transaction: %w", err)
		}
		txn.OrderID = uuidPtr(orderID)
		txns = append(txns, txn)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loyalty transactions: %w", err)
	}

	return txns, nil
}
