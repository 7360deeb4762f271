package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	StatusPlaced    = "placed"
	StatusConfirmed = "confirmed"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusPickedUp  = "picked_up"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// OrderStatuses lists every valid order status in lifecycle order
var OrderStatuses = []string{
	StatusPlaced,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusPickedUp,
	StatusDelivered,
	StatusCancelled,
}

// IsValidOrderStatus reports whether status is one of OrderStatuses
func IsValidOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Order represents a client's order from a single business. Orders are never deleted.
type Order struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ClientID         uint            `gorm:"not null;index" json:"client_id"`
	BusinessID       uint            `gorm:"not null;index" json:"business_id"`
	DeliveryDriverID *uint           `gorm:"index" json:"delivery_driver_id"` // nullable, set by assignment or driver claim
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status           string          `gorm:"not null;default:'placed';index" json:"status"`
	DeliveryAddress  string          `json:"delivery_address"`
	Items            []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderItem is an immutable line of an order; PriceAtTime is the price snapshot taken at placement
type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"not null;index" json:"order_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	Quantity    int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	PriceAtTime decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price_at_time"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// CouponUsage records that a coupon was redeemed on an order
type CouponUsage struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	CouponID uint      `gorm:"not null;index" json:"coupon_id"`
	UserID   uint      `gorm:"not null;index" json:"user_id"`
	OrderID  *uint     `gorm:"index" json:"order_id"`
	UsedAt   time.Time `gorm:"autoCreateTime" json:"used_at"`
}

// TableName specifies the table name for the CouponUsage model
func (CouponUsage) TableName() string {
	return "coupon_usages"
}
