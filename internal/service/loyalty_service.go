package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"perfume-store/internal/config"
	"perfume-store/internal/domain"
	"perfume-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdjustInput is an administrative balance correction. Positive points are credited,
// negative points are debited.
type AdjustInput struct {
	UserID uuid.UUID  `json:"user_id"`
	Points int        `json:"points" validate:"required"`
	Reason string     `json:"reason" validate:"required,max=255"`
	Actor  *uuid.UUID `json:"-"`
}

// LoyaltyService defines the interface for the points ledger
type LoyaltyService interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (*domain.LoyaltyAccount, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LoyaltyTransaction, error)
	Adjust(ctx context.Context, input AdjustInput) (*domain.LoyaltyAccount, error)
}

type loyaltyService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewLoyaltyService creates a new instance of LoyaltyService
func NewLoyaltyService(store repository.Store, logger *zap.Logger) LoyaltyService {
	return &loyaltyService{store: store, logger: logger}
}

// GetAccount returns the user's account, creating an empty one on first access.
func (s *loyaltyService) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.LoyaltyAccount, error) {
	account, err := s.store.Loyalty().FindAccount(ctx, userID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		if _, err := s.store.Loyalty().CreateAccount(ctx, newAccount(userID)); err != nil {
			return nil, fmt.Errorf("failed to create loyalty account: %w", err)
		}
		return s.store.Loyalty().FindAccount(ctx, userID)
	}
	return account, err
}

func (s *loyaltyService) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LoyaltyTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txns, err := s.store.Loyalty().ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list loyalty transactions: %w", err)
	}
	return txns, nil
}

func (s *loyaltyService) Adjust(ctx context.Context, input AdjustInput) (*domain.LoyaltyAccount, error) {
	if input.Points == 0 {
		return nil, domain.NewValidationError("loyalty_adjustment", "points", "must not be zero")
	}

	var account *domain.LoyaltyAccount
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		a, err := lockAccount(ctx, tx, input.UserID)
		if err != nil {
			return err
		}

		ts := now()
		var txn domain.LoyaltyTransaction
		if input.Points > 0 {
			txn = a.Credit(domain.LoyaltyAdjust, input.Points, nil, input.Reason, ts)
		} else if txn, err = a.Debit(-input.Points, nil, input.Reason, ts); err != nil {
			return err
		}

		if err := saveLedger(ctx, tx, a, &txn); err != nil {
			return err
		}
		account = a
		return recordAudit(ctx, tx, input.Actor, domain.AuditLoyaltyAdjust, "loyalty_account", input.UserID.String(),
			map[string]any{"points": input.Points, "reason": input.Reason, "balance_after": a.Balance})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to adjust loyalty balance: %w", err)
	}

	s.logger.Info("Loyalty balance adjusted",
		zap.String("user_id", input.UserID.String()),
		zap.Int("points", input.Points),
		zap.Int("balance", account.Balance),
	)
	return account, nil
}

func newAccount(userID uuid.UUID) *domain.LoyaltyAccount {
	ts := now()
	return &domain.LoyaltyAccount{
		UserID:    userID,
		Tier:      domain.LoyaltyTierBronze,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// lockAccount returns the user's account row locked for the rest of tx, creating it
// when missing.
func lockAccount(ctx context.Context, tx repository.Store, userID uuid.UUID) (*domain.LoyaltyAccount, error) {
	if _, err := tx.Loyalty().CreateAccount(ctx, newAccount(userID)); err != nil {
		return nil, fmt.Errorf("failed to ensure loyalty account: %w", err)
	}
	return tx.Loyalty().FindAccountForUpdate(ctx, userID)
}

func saveLedger(ctx context.Context, tx repository.Store, account *domain.LoyaltyAccount, txn *domain.LoyaltyTransaction) error {
	if err := tx.Loyalty().UpdateAccount(ctx, account); err != nil {
		return err
	}
	return tx.Loyalty().AppendTransaction(ctx, txn)
}

// pointsEarned is floor(max(subtotal - loyalty discount, 0) * rate).
func pointsEarned(order *domain.Order, rate decimal.Decimal) int {
	return int(order.PointsBase().Mul(rate).Floor().IntPart())
}

// ledger applies loyalty effects of order status changes. Each effect is guarded by a
// monotonic flag on the order that is flipped with a conditional update, so it runs at
// most once however often the status is saved.
type ledger struct {
	cfg    config.LoyaltyConfig
	logger *zap.Logger
}

// settle runs the loyalty effect, if any, of the order having just entered its status.
func (l ledger) settle(ctx context.Context, tx repository.Store, order *domain.Order, at time.Time) error {
	switch order.Status {
	case domain.OrderStatusPaid, domain.OrderStatusDelivered:
		if !order.LoyaltyAwarded {
			return l.award(ctx, tx, order, at)
		}
	case domain.OrderStatusCancelled:
		if order.LoyaltyPointsUsed > 0 && !order.LoyaltyRefunded {
			return l.refund(ctx, tx, order, at)
		}
	}
	return nil
}

func (l ledger) award(ctx context.Context, tx repository.Store, order *domain.Order, at time.Time) error {
	account, err := lockAccount(ctx, tx, order.UserID)
	if err != nil {
		return err
	}

	earned := pointsEarned(order, l.cfg.EarnRate)
	flipped, err := tx.Orders().MarkLoyaltyAwarded(ctx, order.ID, earned)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}
	order.LoyaltyAwarded = true
	order.LoyaltyPointsEarned = earned

	if earned > 0 {
		txn := account.Credit(domain.LoyaltyEarn, earned, &order.ID, "Points for order "+order.ID.String(), at)
		if err := saveLedger(ctx, tx, account, &txn); err != nil {
			return err
		}
	}

	l.logger.Info("Loyalty points awarded",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.Int("points", earned),
	)
	return nil
}

func (l ledger) refund(ctx context.Context, tx repository.Store, order *domain.Order, at time.Time) error {
	account, err := lockAccount(ctx, tx, order.UserID)
	if err != nil {
		return err
	}

	flipped, err := tx.Orders().MarkLoyaltyRefunded(ctx, order.ID)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}
	order.LoyaltyRefunded = true

	txn := account.Credit(domain.LoyaltyRefund, order.LoyaltyPointsUsed, &order.ID, "Refund for cancelled order "+order.ID.String(), at)
	if err := saveLedger(ctx, tx, account, &txn); err != nil {
		return err
	}

	l.logger.Info("Loyalty points refunded",
		zap.String("order_id", order.ID.String()),
		zap.Int("points", order.LoyaltyPointsUsed),
	)
	return nil
}

// redemption is a debit prepared before the order row exists. It is saved once the
// order is inserted, since ledger entries reference the order.
type redemption struct {
	account *domain.LoyaltyAccount
	txn     domain.LoyaltyTransaction
	points  int
	value   decimal.Decimal
}

// redeem prepares a debit of up to requested points for an order, capped by the balance
// and by the order subtotal. It returns nil when nothing is redeemed.
func (l ledger) redeem(ctx context.Context, tx repository.Store, order *domain.Order, requested int, at time.Time) (*redemption, error) {
	if requested <= 0 || !l.cfg.PointValue.IsPositive() {
		return nil, nil
	}

	account, err := lockAccount(ctx, tx, order.UserID)
	if err != nil {
		return nil, err
	}

	maxBySubtotal := int(order.Subtotal.Div(l.cfg.PointValue).Floor().IntPart())
	points := min(requested, account.Balance, maxBySubtotal)
	if points <= 0 {
		return nil, nil
	}

	txn, err := account.Debit(points, &order.ID, "Redeemed on order "+order.ID.String(), at)
	if err != nil {
		return nil, err
	}
	return &redemption{
		account: account,
		txn:     txn,
		points:  points,
		value:   l.cfg.PointValue.Mul(decimal.NewFromInt(int64(points))),
	}, nil
}

func (r *redemption) save(ctx context.Context, tx repository.Store) error {
	return saveLedger(ctx, tx, r.account, &r.txn)
}
