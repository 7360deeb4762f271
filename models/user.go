package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleAdmin    = "admin"
	RoleClient   = "client"
	RoleMerchant = "merchant"
	RoleDelivery = "delivery"
)

// User represents an account on the marketplace (client, merchant, delivery driver or admin)
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Role      string         `gorm:"not null;default:'client';index" json:"role"`
	Phone     *string        `json:"phone,omitempty"`
	Address   *string        `json:"address,omitempty"`
	Status    string         `gorm:"not null;default:'active'" json:"status"` // active, pending, suspended, rejected
	PushToken *string        `json:"-"`                                       // device token for push delivery
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsValidRole reports whether role is one of the known user roles
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleClient, RoleMerchant, RoleDelivery:
		return true
	}
	return false
}
