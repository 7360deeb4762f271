package models

// All returns every model in dependency order, for AutoMigrate
func All() []interface{} {
	return []interface{}{
		&User{},
		&Business{},
		&Product{},
		&Order{},
		&OrderItem{},
		&CouponUsage{},
		&Notification{},
		&NotificationPreference{},
		&Message{},
	}
}
