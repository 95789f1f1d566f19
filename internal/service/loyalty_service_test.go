package service

import (
	"context"
	"testing"

	"perfume-store/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjust_CreditsAndDebits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, admin := uuid.New(), uuid.New()

	account, err := f.loyalty.Adjust(ctx, AdjustInput{UserID: user, Points: 6000, Reason: "migration", Actor: &admin})
	require.NoError(t, err)
	assert.Equal(t, 6000, account.Balance)
	assert.Equal(t, domain.LoyaltyTierSilver, account.Tier)

	account, err = f.loyalty.Adjust(ctx, AdjustInput{UserID: user, Points: -1000, Reason: "correction", Actor: &admin})
	require.NoError(t, err)
	assert.Equal(t, 5000, account.Balance)

	_, err = f.loyalty.Adjust(ctx, AdjustInput{UserID: user, Points: -5001, Reason: "too much"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.loyalty.Adjust(ctx, AdjustInput{UserID: user, Points: 0, Reason: "noop"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	txns, err := f.loyalty.Transactions(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, domain.LoyaltyRedeem, txns[0].Type)
	assert.Equal(t, -1000, txns[0].Points)
	assert.Equal(t, 5000, txns[0].BalanceAfter)

	entries, err := f.audit.ListForObject(ctx, "loyalty_account", user.String())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// Feature: perfume-store, Property 9: Adjustments never take the balance below zero
func TestProperty_AdjustmentsNeverOverdraw(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("balance equals the sum of accepted adjustments and stays non-negative", prop.ForAll(
		func(deltas []int) bool {
			f := newFixture(t)
			ctx := context.Background()
			user := uuid.New()

			expected := 0
			for _, d := range deltas {
				if d == 0 {
					continue
				}
				_, err := f.loyalty.Adjust(ctx, AdjustInput{UserID: user, Points: d, Reason: "property"})
				if expected+d < 0 {
					if err == nil {
						return false
					}
					continue
				}
				if err != nil {
					return false
				}
				expected += d
			}

			account, err := f.loyalty.GetAccount(ctx, user)
			return err == nil && account.Balance == expected && account.Balance >= 0
		},
		gen.SliceOf(gen.IntRange(-500, 500)),
	))

	properties.TestingRun(t)
}

func TestProvision_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	first, err := f.accounts.Provision(ctx, user)
	require.NoError(t, err)
	assert.True(t, first.AccountCreated)

	f.grantPoints(t, user, 10)

	second, err := f.accounts.Provision(ctx, user)
	require.NoError(t, err)
	assert.False(t, second.AccountCreated)
	assert.Equal(t, first.CartID, second.CartID)

	account, err := f.loyalty.GetAccount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 10, account.Balance)
	assert.Equal(t, domain.LoyaltyTierBronze, account.Tier)
}
