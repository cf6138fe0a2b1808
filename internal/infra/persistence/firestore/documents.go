package firestore

import (
	"time"

	"kitchenline/internal/domain/entity"
)

// Field names shared by queries and updates.
const (
	fieldRole        = "role"
	fieldCustomerID  = "customerId"
	fieldCookID      = "cookId"
	fieldStatus      = "status"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
	fieldRecipientID = "recipientId"
	fieldIsRead      = "isRead"
	fieldEmail       = "email"
	fieldETA         = "estimatedDeliveryTime"
	fieldDelivered   = "actualDeliveryTime"
)

type actorDoc struct {
	Role               string    `firestore:"role"`
	Email              string    `firestore:"email"`
	DisplayName        string    `firestore:"displayName"`
	Phone              string    `firestore:"phone"`
	Address            string    `firestore:"address"`
	PhotoURL           string    `firestore:"photoUrl"`
	Bio                string    `firestore:"bio"`
	DeliveryFee        *int64    `firestore:"deliveryFee"`
	Verified           bool      `firestore:"verified"`
	OnboardingComplete bool      `firestore:"onboardingComplete"`
	PushTokens         []string  `firestore:"pushTokens"`
	CreatedAt          time.Time `firestore:"createdAt"`
	UpdatedAt          time.Time `firestore:"updatedAt"`
}

type orderItemDoc struct {
	Name      string `firestore:"name"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
}

type orderDoc struct {
	CustomerID            string         `firestore:"customerId"`
	CookID                string         `firestore:"cookId"`
	Items                 []orderItemDoc `firestore:"items"`
	Subtotal              int64          `firestore:"subtotal"`
	DeliveryFee           int64          `firestore:"deliveryFee"`
	Total                 int64          `firestore:"total"`
	Status                string         `firestore:"status"`
	PaymentStatus         string         `firestore:"paymentStatus"`
	DeliveryAddress       string         `firestore:"deliveryAddress"`
	CreatedAt             time.Time      `firestore:"createdAt"`
	UpdatedAt             time.Time      `firestore:"updatedAt"`
	EstimatedDeliveryTime *time.Time     `firestore:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time     `firestore:"actualDeliveryTime"`
}

type notificationDoc struct {
	RecipientID string    `firestore:"recipientId"`
	Type        string    `firestore:"type"`
	Title       string    `firestore:"title"`
	Message     string    `firestore:"message"`
	OrderID     string    `firestore:"orderId"`
	IsRead      bool      `firestore:"isRead"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type credentialDoc struct {
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"passwordHash"`
	DisplayName  string    `firestore:"displayName"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

func toActorDoc(a *entity.Actor) actorDoc {
	return actorDoc{
		Role:               string(a.Role),
		Email:              a.Email,
		DisplayName:        a.Profile.DisplayName,
		Phone:              a.Profile.Phone,
		Address:            a.Profile.Address,
		PhotoURL:           a.Profile.PhotoURL,
		Bio:                a.Profile.Bio,
		DeliveryFee:        a.Profile.DeliveryFee,
		Verified:           a.Verified,
		OnboardingComplete: a.OnboardingComplete,
		PushTokens:         a.PushTokens,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func (d actorDoc) toEntity(id string) *entity.Actor {
	return &entity.Actor{
		ID:    id,
		Role:  entity.Role(d.Role),
		Email: d.Email,
		Profile: entity.Profile{
			DisplayName: d.DisplayName,
			Phone:       d.Phone,
			Address:     d.Address,
			PhotoURL:    d.PhotoURL,
			Bio:         d.Bio,
			DeliveryFee: d.DeliveryFee,
		},
		Verified:           d.Verified,
		OnboardingComplete: d.OnboardingComplete,
		PushTokens:         d.PushTokens,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func toOrderDoc(o *entity.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDoc{Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}

	return orderDoc{
		CustomerID:            o.CustomerID,
		CookID:                o.CookID,
		Items:                 items,
		Subtotal:              o.Subtotal,
		DeliveryFee:           o.DeliveryFee,
		Total:                 o.Total,
		Status:                string(o.Status),
		PaymentStatus:         string(o.PaymentStatus),
		DeliveryAddress:       o.DeliveryAddress,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		ActualDeliveryTime:    o.ActualDeliveryTime,
	}
}

func (d orderDoc) toEntity(id string) *entity.Order {
	items := make([]entity.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, entity.OrderItem{Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}

	return &entity.Order{
		ID:                    id,
		CustomerID:            d.CustomerID,
		CookID:                d.CookID,
		Items:                 items,
		Subtotal:              d.Subtotal,
		DeliveryFee:           d.DeliveryFee,
		Total:                 d.Total,
		Status:                entity.OrderStatus(d.Status),
		PaymentStatus:         entity.PaymentStatus(d.PaymentStatus),
		DeliveryAddress:       d.DeliveryAddress,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
		EstimatedDeliveryTime: d.EstimatedDeliveryTime,
		ActualDeliveryTime:    d.ActualDeliveryTime,
	}
}

func toNotificationDoc(n *entity.Notification) notificationDoc {
	return notificationDoc{
		RecipientID: n.RecipientID,
		Type:        string(n.Type),
		Title:       n.Title,
		Message:     n.Message,
		OrderID:     n.OrderID,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
}

func (d notificationDoc) toEntity(id string) *entity.Notification {
	return &entity.Notification{
		ID:          id,
		RecipientID: d.RecipientID,
		Type:        entity.NotificationType(d.Type),
		Title:       d.Title,
		Message:     d.Message,
		OrderID:     d.OrderID,
		IsRead:      d.IsRead,
		CreatedAt:   d.CreatedAt,
	}
}
