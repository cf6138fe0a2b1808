package model

import (
	"time"

	"gorm.io/datatypes"
)

// OrderItemModel is one line of the order's JSON item list.
type OrderItemModel struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

// OrderModel mirrors the 'orders' table. Money columns hold minor currency units.
type OrderModel struct {
	ID                    string                              `gorm:"type:uuid;primaryKey"`
	CustomerID            string                              `gorm:"type:varchar(128);not null;index"`
	CookID                string                              `gorm:"type:varchar(128);not null;index"`
	Items                 datatypes.JSONSlice[OrderItemModel] `gorm:"type:jsonb;not null"`
	Subtotal              int64                               `gorm:"not null"`
	DeliveryFee           int64                               `gorm:"not null"`
	Total                 int64                               `gorm:"not null"`
	Status                string                              `gorm:"type:varchar(32);not null;index"`
	PaymentStatus         string                              `gorm:"type:varchar(16);not null"`
	DeliveryAddress       string                              `gorm:"type:text"`
	EstimatedDeliveryTime *time.Time
	ActualDeliveryTime    *time.Time
	CreatedAt             time.Time `gorm:"index"`
	UpdatedAt             time.Time
}

// TableName explicitly sets the table name for GORM.
func (OrderModel) TableName() string {
	return "orders"
}
