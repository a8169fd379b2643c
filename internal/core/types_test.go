package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Successor(t *testing.T) {
	tests := []struct {
		name   string
		status OrderStatus
		next   OrderStatus
		ok     bool
	}{
		{name: "pending moves to accepted", status: StatusPending, next: StatusAccepted, ok: true},
		{name: "accepted moves to picked_up", status: StatusAccepted, next: StatusPickedUp, ok: true},
		{name: "picked_up moves to delivered", status: StatusPickedUp, next: StatusDelivered, ok: true},
		{name: "delivered is terminal", status: StatusDelivered, ok: false},
		{name: "cancelled is terminal", status: StatusCancelled, ok: false},
		{name: "unknown status has no successor", status: OrderStatus("refunded"), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := tt.status.Successor()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.next, next)
			}
		})
	}
}

func TestOrderStatus_Cancellable(t *testing.T) {
	assert.True(t, StatusPending.Cancellable())
	assert.True(t, StatusAccepted.Cancellable())
	assert.False(t, StatusPickedUp.Cancellable())
	assert.False(t, StatusDelivered.Cancellable())
	assert.False(t, StatusCancelled.Cancellable())
}

func TestOrder_CheckInvariants(t *testing.T) {
	base := Order{ID: "o1", CustomerID: "c1", Status: StatusPending}
	require.NoError(t, base.CheckInvariants())

	claimed := base
	claimed.Status = StatusAccepted
	claimed.DelivererID = "d1"
	require.NoError(t, claimed.CheckInvariants())

	// Deliverer set while still pending
	bad := base
	bad.DelivererID = "d1"
	assert.Error(t, bad.CheckInvariants())

	// Accepted without a deliverer
	bad = base
	bad.Status = StatusAccepted
	assert.Error(t, bad.CheckInvariants())

	// Self-delivery
	bad = claimed
	bad.DelivererID = "c1"
	assert.Error(t, bad.CheckInvariants())

	// Cancel after claim keeps the deliverer on the record.
	cancelled := claimed
	cancelled.Status = StatusCancelled
	require.NoError(t, cancelled.CheckInvariants())
}

func TestOrderDraft_ItemTotal(t *testing.T) {
	draft := OrderDraft{
		DeliveryFee: decimal.NewFromFloat(2.50),
		Items: []LineItem{
			{Name: "Burrito", UnitPrice: decimal.NewFromFloat(8.99), Quantity: 2},
			{Name: "Horchata", UnitPrice: decimal.NewFromFloat(3.00), Quantity: 1},
		},
	}
	assert.True(t, draft.ItemTotal().Equal(decimal.NewFromFloat(23.48)))
}
