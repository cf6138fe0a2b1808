package model

import "time"

// NotificationModel mirrors the 'notifications' table.
type NotificationModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	RecipientID string    `gorm:"type:varchar(128);not null;index:idx_notifications_recipient_read"`
	Type        string    `gorm:"type:varchar(32);not null"`
	Title       string    `gorm:"type:text;not null"`
	Message     string    `gorm:"type:text"`
	OrderID     string    `gorm:"type:varchar(64);index"`
	IsRead      bool      `gorm:"not null;default:false;index:idx_notifications_recipient_read"`
	CreatedAt   time.Time `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (NotificationModel) TableName() string {
	return "notifications"
}
