package model

import (
	"time"

	"gorm.io/datatypes"
)

// ActorModel mirrors the 'actors' table. ID equals the auth provider UID.
type ActorModel struct {
	ID                 string                      `gorm:"type:varchar(128);primaryKey"`
	Role               string                      `gorm:"type:varchar(16);not null;index"`
	Email              string                      `gorm:"type:varchar(255);not null"`
	DisplayName        string                      `gorm:"type:varchar(100)"`
	Phone              string                      `gorm:"type:varchar(32)"`
	Address            string                      `gorm:"type:text"`
	PhotoURL           string                      `gorm:"type:text"`
	Bio                string                      `gorm:"type:text"`
	DeliveryFee        *int64                      `gorm:"type:bigint"`
	Verified           bool                        `gorm:"not null;default:false"`
	OnboardingComplete bool                        `gorm:"not null;default:false"`
	PushTokens         datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName explicitly sets the table name for GORM.
func (ActorModel) TableName() string {
	return "actors"
}
