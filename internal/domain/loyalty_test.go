package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierFor(t *testing.T) {
	assert.Equal(t, LoyaltyTierBronze, TierFor(0))
	assert.Equal(t, LoyaltyTierBronze, TierFor(4999))
	assert.Equal(t, LoyaltyTierSilver, TierFor(5000))
	assert.Equal(t, LoyaltyTierGold, TierFor(20000))
}

func TestLoyaltyAccount_CreditAndDebit(t *testing.T) {
	now := time.Now()
	orderID := uuid.New()
	acc := &LoyaltyAccount{UserID: uuid.New()}

	earn := acc.Credit(LoyaltyEarn, 22, &orderID, "order", now)
	assert.Equal(t, 22, acc.Balance)
	assert.Equal(t, 22, acc.LifetimeEarned)
	assert.Equal(t, 22, earn.BalanceAfter)
	assert.Equal(t, LoyaltyEarn, earn.Type)

	redeem, err := acc.Debit(10, &orderID, "checkout", now)
	require.NoError(t, err)
	assert.Equal(t, -10, redeem.Points)
	assert.Equal(t, 12, acc.Balance)
	assert.Equal(t, 10, acc.LifetimeRedeemed)

	refund := acc.Credit(LoyaltyRefund, 10, &orderID, "cancelled", now)
	assert.Equal(t, 22, refund.BalanceAfter)
	assert.Equal(t, 0, acc.LifetimeRedeemed)
	assert.Equal(t, 22, acc.LifetimeEarned, "refunds do not count as earned")
}

func TestLoyaltyAccount_DebitCannotGoNegative(t *testing.T) {
	acc := &LoyaltyAccount{UserID: uuid.New(), Balance: 5}

	_, err := acc.Debit(6, nil, "too much", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, 5, acc.Balance)
}

func TestLoyaltyAccount_RefundFloorsLifetimeRedeemed(t *testing.T) {
	acc := &LoyaltyAccount{UserID: uuid.New(), LifetimeRedeemed: 3}
	acc.Credit(LoyaltyRefund, 10, nil, "refund", time.Now())
	assert.Equal(t, 0, acc.LifetimeRedeemed)
	assert.Equal(t, 10, acc.Balance)
}
