package model

import "time"

// CredentialModel mirrors the 'credentials' table owned by the local auth provider.
type CredentialModel struct {
	UID          string `gorm:"type:varchar(128);primaryKey"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	DisplayName  string `gorm:"type:varchar(100)"`
	CreatedAt    time.Time
}

// TableName explicitly sets the table name for GORM.
func (CredentialModel) TableName() string {
	return "credentials"
}

// All lists every model, in migration order.
func All() []any {
	return []any{&ActorModel{}, &CredentialModel{}, &OrderModel{}, &NotificationModel{}}
}
