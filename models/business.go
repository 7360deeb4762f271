package models

import (
	"time"

	"gorm.io/gorm"
)

// Business is a merchant storefront; its owner receives order notifications
type Business struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Owner       User           `gorm:"foreignKey:OwnerID" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Description *string        `json:"description,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Address     *string        `json:"address,omitempty"`
	Status      string         `gorm:"not null;default:'pending'" json:"status"` // pending, approved, rejected
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Business model
func (Business) TableName() string {
	return "businesses"
}
