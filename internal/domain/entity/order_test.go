package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_FixesMoneyFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []OrderItem{
		{Name: "Dumplings", UnitPrice: 850, Quantity: 2},
		{Name: "Tea", UnitPrice: 300, Quantity: 1},
	}

	order := NewOrder("cust-1", "cook-1", items, 250, "1 Main St", now)

	assert.Equal(t, int64(2000), order.Subtotal)
	assert.Equal(t, int64(250), order.DeliveryFee)
	assert.Equal(t, order.Subtotal+order.DeliveryFee, order.Total)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, PaymentPending, order.PaymentStatus)
	assert.Equal(t, now, order.CreatedAt)

	items[0].Quantity = 10
	assert.Equal(t, 2, order.Items[0].Quantity, "items are copied on creation")
}

func TestOrder_ApplyStatusStampsDelivery(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := NewOrder("cust-1", "cook-1", []OrderItem{{Name: "Soup", UnitPrice: 500, Quantity: 1}}, 0, "", created)

	order.ApplyStatus(OrderStatusReady, created.Add(time.Minute))
	assert.Nil(t, order.ActualDeliveryTime)

	delivered := created.Add(time.Hour)
	order.ApplyStatus(OrderStatusDelivered, delivered)
	require.NotNil(t, order.ActualDeliveryTime)
	assert.Equal(t, delivered, *order.ActualDeliveryTime)
	assert.Equal(t, delivered, order.UpdatedAt)
	assert.Equal(t, int64(500), order.Total, "total is never recomputed")
}

func TestOrder_Counterparty(t *testing.T) {
	order := &Order{CustomerID: "cust-1", CookID: "cook-1"}

	assert.Equal(t, "cook-1", order.Counterparty("cust-1"))
	assert.Equal(t, "cust-1", order.Counterparty("cook-1"))
	assert.Empty(t, order.Counterparty("stranger"))
	assert.False(t, order.IsParty(""))
}

func TestRole_Capabilities(t *testing.T) {
	assert.True(t, RoleCustomer.Can(CapPlaceOrder))
	assert.False(t, RoleCook.Can(CapPlaceOrder))
	assert.True(t, RoleAdmin.Can(CapVerifyActors))
	assert.False(t, RoleCustomer.Can(CapViewDashboard))
	assert.False(t, Role("chef").IsValid())
}

func TestPartyName_UnknownWhenDangling(t *testing.T) {
	assert.Equal(t, UnknownPartyName, PartyName(nil))
	assert.Equal(t, "a@b.c", PartyName(&Actor{Email: "a@b.c"}))
	assert.Equal(t, "Mei", PartyName(&Actor{Email: "a@b.c", Profile: Profile{DisplayName: "Mei"}}))
}
