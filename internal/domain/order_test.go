package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusPaid, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusShipped, true},
		{OrderStatus("lost"), OrderStatus("lost"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCheckTransition_ReturnsTransitionError(t *testing.T) {
	err := CheckTransition(OrderStatusShipped, OrderStatusPaid)
	require.Error(t, err)

	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, OrderStatusShipped, terr.From)
	assert.Equal(t, OrderStatusPaid, terr.To)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
}

func TestRecomputeTotal(t *testing.T) {
	o := &Order{
		Subtotal:        decimal.NewFromInt(500),
		LoyaltyDiscount: decimal.NewFromInt(50),
		DeliveryCost:    decimal.NewFromInt(30),
	}
	o.RecomputeTotal()
	assert.True(t, o.Total.Equal(decimal.NewFromInt(480)))

	o.LoyaltyDiscount = decimal.NewFromInt(900)
	o.RecomputeTotal()
	assert.True(t, o.Total.IsZero(), "total never goes below zero")
}

func TestStampStatusTime_KeepsFirstStamp(t *testing.T) {
	o := &Order{}
	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	o.StampStatusTime(OrderStatusPaid, first)
	o.StampStatusTime(OrderStatusPaid, first.Add(time.Hour))

	require.NotNil(t, o.PaidAt)
	assert.Equal(t, first, *o.PaidAt)
	assert.Nil(t, o.ShippedAt)
}

// Feature: perfume-store, Property 4: Transitions outside the table are rejected
func TestProperty_TransitionGuard(t *testing.T) {
	properties := gopter.NewProperties(nil)

	allowed := map[OrderStatus]map[OrderStatus]bool{}
	for from, next := range orderStatusTransitions {
		allowed[from] = map[OrderStatus]bool{from: true}
		for _, to := range next {
			allowed[from][to] = true
		}
	}

	properties.Property("CanTransition agrees with the transition table", prop.ForAll(
		func(i, j int) bool {
			from, to := AllOrderStatuses[i], AllOrderStatuses[j]
			return CanTransition(from, to) == allowed[from][to]
		},
		gen.IntRange(0, len(AllOrderStatuses)-1),
		gen.IntRange(0, len(AllOrderStatuses)-1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: perfume-store, Property 5: Total equals max(0, subtotal - loyalty discount + delivery)
func TestProperty_TotalInvariant(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("recomputed total follows the formula", prop.ForAll(
		func(sub, disc, delivery int64) bool {
			o := &Order{
				Subtotal:        decimal.New(sub, -2),
				LoyaltyDiscount: decimal.New(disc, -2),
				DeliveryCost:    decimal.New(delivery, -2),
			}
			o.RecomputeTotal()

			want := decimal.New(sub-disc+delivery, -2)
			if want.IsNegative() {
				want = decimal.Zero
			}
			return o.Total.Equal(want) && !o.Total.IsNegative()
		},
		gen.Int64Range(0, 100_000_000),
		gen.Int64Range(0, 100_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
