package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyTier is derived from lifetime earned points.
type LoyaltyTier string

const (
	LoyaltyTierBronze LoyaltyTier = "bronze"
	LoyaltyTierSilver LoyaltyTier = "silver"
	LoyaltyTierGold   LoyaltyTier = "gold"
)

const (
	silverThreshold = 5000
	goldThreshold   = 20000
)

// TierFor returns the tier reached with the given lifetime earned points.
func TierFor(lifetimeEarned int) LoyaltyTier {
	switch {
	case lifetimeEarned >= goldThreshold:
		return LoyaltyTierGold
	case lifetimeEarned >= silverThreshold:
		return LoyaltyTierSilver
	default:
		return LoyaltyTierBronze
	}
}

// LoyaltyAccount holds a user's points balance
type LoyaltyAccount struct {
	UserID           uuid.UUID   `json:"user_id" db:"user_id"`
	Balance          int         `json:"balance" db:"balance"`
	LifetimeEarned   int         `json:"lifetime_earned" db:"lifetime_earned"`
	LifetimeRedeemed int         `json:"lifetime_redeemed" db:"lifetime_redeemed"`
	Tier             LoyaltyTier `json:"tier" db:"tier"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// LoyaltyTransactionType classifies ledger entries.
type LoyaltyTransactionType string

const (
	LoyaltyEarn   LoyaltyTransactionType = "earn"
	LoyaltyRedeem LoyaltyTransactionType = "redeem"
	LoyaltyRefund LoyaltyTransactionType = "refund"
	LoyaltyAdjust LoyaltyTransactionType = "adjust"
)

// LoyaltyTransaction is an append-only ledger entry. Points are signed.
type LoyaltyTransaction struct {
	ID           uuid.UUID              `json:"id" db:"id"`
	UserID       uuid.UUID              `json:"user_id" db:"user_id"`
	Type         LoyaltyTransactionType `json:"type" db:"transaction_type"`
	Points       int                    `json:"points" db:"points"`
	BalanceAfter int                    `json:"balance_after" db:"balance_after"`
	OrderID      *uuid.UUID             `json:"order_id,omitempty" db:"order_id"`
	Description  string                 `json:"description" db:"description"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"`
}

// Credit adds points to the account and returns the ledger entry to append.
func (a *LoyaltyAccount) Credit(kind LoyaltyTransactionType, points int, orderID *uuid.UUID, description string, at time.Time) LoyaltyTransaction {
	a.Balance += points
	switch kind {
	case LoyaltyEarn, LoyaltyAdjust:
		a.LifetimeEarned += points
	case LoyaltyRefund:
		a.LifetimeRedeemed -= points
		if a.LifetimeRedeemed < 0 {
			a.LifetimeRedeemed = 0
		}
	}
	a.Tier = TierFor(a.LifetimeEarned)
	a.UpdatedAt = at
	return a.entry(kind, points, orderID, description, at)
}

// Debit removes points from the account. It fails when the balance would go negative.
func (a *LoyaltyAccount) Debit(points int, orderID *uuid.UUID, description string, at time.Time) (LoyaltyTransaction, error) {
	if points > a.Balance {
		return LoyaltyTransaction{}, NewValidationError("loyalty_account", "balance", "insufficient points")
	}
	a.Balance -= points
	a.LifetimeRedeemed += points
	a.UpdatedAt = at
	return a.entry(LoyaltyRedeem, -points, orderID, description, at), nil
}

func (a *LoyaltyAccount) entry(kind LoyaltyTransactionType, points int, orderID *uuid.UUID, description string, at time.Time) LoyaltyTransaction {
	return LoyaltyTransaction{
		ID:           uuid.New(),
		UserID:       a.UserID,
		Type:         kind,
		Points:       points,
		BalanceAfter: a.Balance,
		OrderID:      orderID,
		Description:  description,
		CreatedAt:    at,
	}
}
