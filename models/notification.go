package models

import "time"

// Notification is a persisted in-app notification for one user
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Type        string    `gorm:"not null" json:"type"`
	Title       string    `gorm:"not null" json:"title"`
	Message     string    `json:"message"`
	ReferenceID *uint     `json:"reference_id"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}

// NotificationPreference is a user's opt-in flag for one preference category.
// A missing row means the category is enabled.
type NotificationPreference struct {
	UserID   uint   `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PrefType string `gorm:"primaryKey" json:"type"`
	Enabled  bool   `gorm:"not null" json:"enabled"`
}

// TableName specifies the table name for the NotificationPreference model
func (NotificationPreference) TableName() string {
	return "user_notification_preferences"
}
