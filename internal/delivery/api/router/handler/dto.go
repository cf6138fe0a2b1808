// Package handler contains the HTTP handlers of the app instance API.
package handler

import (
	"time"

	"kitchenline/internal/domain/entity"
	"kitchenline/internal/usecase"
)

// ProfileResponse is the public part of an actor's profile.
type ProfileResponse struct {
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	Bio         string `json:"bio,omitempty"`
	DeliveryFee *int64 `json:"deliveryFee,omitempty"`
}

// ActorResponse is an actor as the API returns it. Push tokens stay server side.
type ActorResponse struct {
	ID                 string          `json:"id"`
	Role               entity.Role     `json:"role"`
	Email              string          `json:"email"`
	Profile            ProfileResponse `json:"profile"`
	Verified           bool            `json:"verified"`
	OnboardingComplete bool            `json:"onboardingComplete"`
	PushTokenCount     int             `json:"pushTokenCount"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func toActorResponse(a *entity.Actor) *ActorResponse {
	if a == nil {
		return nil
	}

	return &ActorResponse{
		ID:    a.ID,
		Role:  a.Role,
		Email: a.Email,
		Profile: ProfileResponse{
			DisplayName: a.Profile.DisplayName,
			Phone:       a.Profile.Phone,
			Address:     a.Profile.Address,
			PhotoURL:    a.Profile.PhotoURL,
			Bio:         a.Profile.Bio,
			DeliveryFee: a.Profile.DeliveryFee,
		},
		Verified:           a.Verified,
		OnboardingComplete: a.OnboardingComplete,
		PushTokenCount:     len(a.PushTokens),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// OrderItemResponse is one order line.
type OrderItemResponse struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"lineTotal"`
}

// OrderResponse is an order as the API returns it. Amounts are minor units.
type OrderResponse struct {
	ID                    string               `json:"id"`
	CustomerID            string               `json:"customerId"`
	CookID                string               `json:"cookId"`
	Items                 []OrderItemResponse  `json:"items"`
	Subtotal              int64                `json:"subtotal"`
	DeliveryFee           int64                `json:"deliveryFee"`
	Total                 int64                `json:"total"`
	Status                entity.OrderStatus   `json:"status"`
	PaymentStatus         entity.PaymentStatus `json:"paymentStatus"`
	DeliveryAddress       string               `json:"deliveryAddress"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
	EstimatedDeliveryTime *time.Time           `json:"estimatedDeliveryTime,omitempty"`
	ActualDeliveryTime    *time.Time           `json:"actualDeliveryTime,omitempty"`
}

func toOrderResponse(o *entity.Order) *OrderResponse {
	if o == nil {
		return nil
	}

	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
		})
	}

	return &OrderResponse{
		ID:                    o.ID,
		CustomerID:            o.CustomerID,
		CookID:                o.CookID,
		Items:                 items,
		Subtotal:              o.Subtotal,
		DeliveryFee:           o.DeliveryFee,
		Total:                 o.Total,
		Status:                o.Status,
		PaymentStatus:         o.PaymentStatus,
		DeliveryAddress:       o.DeliveryAddress,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		ActualDeliveryTime:    o.ActualDeliveryTime,
	}
}

func toOrderResponses(orders []*entity.Order) []*OrderResponse {
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}

	return out
}

// OrderViewResponse is an order with its parties resolved for display.
type OrderViewResponse struct {
	*OrderResponse

	CustomerName string               `json:"customerName"`
	CookName     string               `json:"cookName"`
	NextStatuses []entity.OrderStatus `json:"nextStatuses"`
}

func toOrderViewResponse(v *usecase.OrderView) *OrderViewResponse {
	next := v.NextStatuses
	if next == nil {
		next = []entity.OrderStatus{}
	}

	return &OrderViewResponse{
		OrderResponse: toOrderResponse(v.Order),
		CustomerName:  v.CustomerName,
		CookName:      v.CookName,
		NextStatuses:  next,
	}
}

// TransitionResponse reports the order after a status change request.
type TransitionResponse struct {
	Order   *OrderResponse `json:"order"`
	Changed bool           `json:"changed"`
}

// NotificationResponse is a notification as the API returns it.
type NotificationResponse struct {
	ID          string                  `json:"id"`
	RecipientID string                  `json:"recipientId"`
	Type        entity.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	OrderID     string                  `json:"orderId,omitempty"`
	IsRead      bool                    `json:"isRead"`
	CreatedAt   time.Time               `json:"createdAt"`
}

func toNotificationResponse(n *entity.Notification) *NotificationResponse {
	return &NotificationResponse{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		OrderID:     n.OrderID,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
}

func toNotificationResponses(notifications []*entity.Notification) []*NotificationResponse {
	out := make([]*NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, toNotificationResponse(n))
	}

	return out
}

// SessionResponse is the session gate state.
type SessionResponse struct {
	Resolved   bool           `json:"resolved"`
	ResolvedBy string         `json:"resolvedBy,omitempty"`
	Actor      *ActorResponse `json:"actor"`
	Token      string         `json:"token,omitempty"`
	ExpiresAt  *time.Time     `json:"expiresAt,omitempty"`
	// Error is set when the actor record could not be read; the previous actor is kept.
	Error string `json:"error,omitempty"`
}

func toSessionResponse(state usecase.SessionState) *SessionResponse {
	out := &SessionResponse{
		Resolved:   state.Resolved,
		ResolvedBy: state.ResolvedBy,
		Actor:      toActorResponse(state.Actor),
		Token:      state.Token,
	}
	if !state.ExpiresAt.IsZero() {
		expiresAt := state.ExpiresAt
		out.ExpiresAt = &expiresAt
	}
	if state.Err != nil {
		out.Error = "The data store is temporarily unavailable"
	}

	return out
}

// CookTotalResponse aggregates one cook's orders.
type CookTotalResponse struct {
	CookID    string `json:"cookId"`
	CookName  string `json:"cookName"`
	Orders    int    `json:"orders"`
	Delivered int    `json:"delivered"`
	Revenue   int64  `json:"revenue"`
}

// DashboardResponse is the admin overview.
type DashboardResponse struct {
	TotalOrders          int                        `json:"totalOrders"`
	OrdersByStatus       map[entity.OrderStatus]int `json:"ordersByStatus"`
	DeliveredRevenue     int64                      `json:"deliveredRevenue"`
	CookTotals           []CookTotalResponse        `json:"cookTotals"`
	Customers            int                        `json:"customers"`
	Cooks                int                        `json:"cooks"`
	PendingVerifications int                        `json:"pendingVerifications"`
	UnknownPartyOrders   int                        `json:"unknownPartyOrders"`
	Fresh                map[string]bool            `json:"fresh"`
	ComputedAt           time.Time                  `json:"computedAt"`
}

func toDashboardResponse(d *usecase.Dashboard) *DashboardResponse {
	totals := make([]CookTotalResponse, 0, len(d.CookTotals))
	for _, t := range d.CookTotals {
		totals = append(totals, CookTotalResponse(t))
	}

	return &DashboardResponse{
		TotalOrders:          d.TotalOrders,
		OrdersByStatus:       d.OrdersByStatus,
		DeliveredRevenue:     d.DeliveredRevenue,
		CookTotals:           totals,
		Customers:            d.Customers,
		Cooks:                d.Cooks,
		PendingVerifications: d.PendingVerifications,
		UnknownPartyOrders:   d.UnknownPartyOrders,
		Fresh: map[string]bool{
			"orders":    d.OrdersFresh,
			"customers": d.CustomersFresh,
			"cooks":     d.CooksFresh,
		},
		ComputedAt: d.ComputedAt,
	}
}
