package entity

import (
	"slices"
	"time"
)

// PaymentStatus tracks payment separately from the order lifecycle.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// IsValid checks if the PaymentStatus is a valid value.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	default:
		return false
	}
}

// OrderItem is one ordered line. Items are immutable once the order is placed.
type OrderItem struct {
	Name      string // Dish name as shown on the menu.
	UnitPrice int64  // Price per unit in minor currency units.
	Quantity  int    // Number of units ordered.
}

// LineTotal returns UnitPrice * Quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order is the central aggregate shared by a customer and a cook.
type Order struct {
	ID                    string        // Store-assigned identifier.
	CustomerID            string        // Actor who placed the order. May dangle.
	CookID                string        // Actor who prepares the order. May dangle.
	Items                 []OrderItem   // Ordered lines, fixed at creation.
	Subtotal              int64         // Sum of line totals, fixed at creation.
	DeliveryFee           int64         // Delivery fee, fixed at creation.
	Total                 int64         // Subtotal + DeliveryFee, never recomputed.
	Status                OrderStatus   // Lifecycle state.
	PaymentStatus         PaymentStatus // Payment state, independent of Status.
	DeliveryAddress       string        // Where the order is delivered.
	CreatedAt             time.Time     // Timestamp of placement.
	UpdatedAt             time.Time     // Timestamp of the last transition or edit.
	EstimatedDeliveryTime *time.Time    // Set by the cook, optional.
	ActualDeliveryTime    *time.Time    // Stamped when the order reaches delivered.
}

// NewOrder builds a pending order and fixes its money fields.
func NewOrder(customerID, cookID string, items []OrderItem, deliveryFee int64, address string, now time.Time) *Order {
	subtotal := SubtotalOf(items)

	return &Order{
		CustomerID:      customerID,
		CookID:          cookID,
		Items:           slices.Clone(items),
		Subtotal:        subtotal,
		DeliveryFee:     deliveryFee,
		Total:           subtotal + deliveryFee,
		Status:          OrderStatusPending,
		PaymentStatus:   PaymentPending,
		DeliveryAddress: address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// SubtotalOf sums the line totals of items.
func SubtotalOf(items []OrderItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotal()
	}

	return subtotal
}

// IsParty reports whether actorID is the order's customer or cook.
func (o *Order) IsParty(actorID string) bool {
	return actorID != "" && (o.CustomerID == actorID || o.CookID == actorID)
}

// Counterparty returns the other party of the order, or "" if actorID is not a party.
func (o *Order) Counterparty(actorID string) string {
	switch actorID {
	case o.CustomerID:
		return o.CookID
	case o.CookID:
		return o.CustomerID
	default:
		return ""
	}
}

// ApplyStatus moves the order to status and stamps timestamps. It does not check legality.
func (o *Order) ApplyStatus(status OrderStatus, now time.Time) {
	o.Status = status
	o.UpdatedAt = now
	if status == OrderStatusDelivered {
		delivered := now
		o.ActualDeliveryTime = &delivered
	}
}
