package models

import "time"

// Message is a chat message between two users, optionally scoped to an order conversation
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"not null;index" json:"sender_id"`
	ReceiverID uint      `gorm:"not null;index" json:"receiver_id"`
	OrderID    *uint     `gorm:"index" json:"order_id"` // nullable, set for order group chats
	Body       string    `gorm:"column:message;type:text;not null" json:"message"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}
