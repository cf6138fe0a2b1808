package entity

import (
	"fmt"
	"slices"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusAccepted       OrderStatus = "accepted"
	OrderStatusCooking        OrderStatus = "cooking"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// orderTransitions is the single permission table for status changes:
// current status -> target status -> roles allowed to perform the edge.
// Any edge not listed is illegal.
var orderTransitions = map[OrderStatus]map[OrderStatus][]Role{
	OrderStatusPending: {
		OrderStatusAccepted:  {RoleCook},
		OrderStatusCancelled: {RoleCook, RoleCustomer},
	},
	OrderStatusAccepted: {
		OrderStatusCooking:   {RoleCook},
		OrderStatusCancelled: {RoleCook},
	},
	OrderStatusCooking: {
		OrderStatusReady:     {RoleCook},
		OrderStatusCancelled: {RoleCook},
	},
	OrderStatusReady: {
		OrderStatusOutForDelivery: {RoleCook},
		OrderStatusDelivered:      {RoleCook},
		OrderStatusCancelled:      {RoleCook},
	},
	OrderStatusOutForDelivery: {
		OrderStatusDelivered: {RoleCook},
		OrderStatusCancelled: {RoleCook},
	},
}

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusCooking,
	OrderStatusReady,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// String returns the string representation of the OrderStatus.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid checks if the OrderStatus is a valid value.
func (s OrderStatus) IsValid() bool {
	return slices.Contains(OrderStatuses, s)
}

// IsTerminal reports whether no further transition is legal from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether s -> to is an edge of the lifecycle graph.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	_, ok := orderTransitions[s][to]

	return ok
}

// PermitsTransition reports whether role may move an order from s to to.
func (s OrderStatus) PermitsTransition(to OrderStatus, role Role) bool {
	return slices.Contains(orderTransitions[s][to], role)
}

// NextStatuses returns the statuses role may move an order to from s.
func (s OrderStatus) NextStatuses(role Role) []OrderStatus {
	var next []OrderStatus
	for _, candidate := range OrderStatuses {
		if s.PermitsTransition(candidate, role) {
			next = append(next, candidate)
		}
	}

	return next
}

// Headline returns a short human title for an order entering s.
func (s OrderStatus) Headline() string {
	switch s {
	case OrderStatusPending:
		return "Order placed"
	case OrderStatusAccepted:
		return "Order accepted"
	case OrderStatusCooking:
		return "Your food is being prepared"
	case OrderStatusReady:
		return "Order ready"
	case OrderStatusOutForDelivery:
		return "Out for delivery"
	case OrderStatusDelivered:
		return "Order delivered"
	case OrderStatusCancelled:
		return "Order cancelled"
	default:
		return "Order updated"
	}
}

// Describe returns a sentence telling the customer what s means for their order.
func (s OrderStatus) Describe(cookName string) string {
	switch s {
	case OrderStatusPending:
		return fmt.Sprintf("Your order is waiting for %s to accept it.", cookName)
	case OrderStatusAccepted:
		return fmt.Sprintf("%s accepted your order.", cookName)
	case OrderStatusCooking:
		return fmt.Sprintf("%s started cooking your order.", cookName)
	case OrderStatusReady:
		return fmt.Sprintf("%s finished your order. It will be on its way shortly.", cookName)
	case OrderStatusOutForDelivery:
		return "Your order is on its way."
	case OrderStatusDelivered:
		return "Your order was delivered. Enjoy your meal!"
	case OrderStatusCancelled:
		return "Your order was cancelled."
	default:
		return fmt.Sprintf("Your order is now %s.", s)
	}
}
