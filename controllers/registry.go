package controllers

import (
	"github.com/kendall-kelly/delyra-api/realtime"
	"github.com/kendall-kelly/delyra-api/services"
)

var (
	orderServiceInstance        *services.OrderService
	notificationServiceInstance *services.NotificationService
	chatServiceInstance         *services.ChatService
	hubInstance                 *realtime.Hub
)

// SetOrderService sets the order service used by the order handlers
func SetOrderService(s *services.OrderService) {
	orderServiceInstance = s
}

// GetOrderService returns the order service instance
func GetOrderService() *services.OrderService {
	return orderServiceInstance
}

// SetNotificationService sets the notification service used by the notification and user handlers
func SetNotificationService(s *services.NotificationService) {
	notificationServiceInstance = s
}

// GetNotificationService returns the notification service instance
func GetNotificationService() *services.NotificationService {
	return notificationServiceInstance
}

// SetChatService sets the chat service used by the chat history handlers
func SetChatService(s *services.ChatService) {
	chatServiceInstance = s
}

// GetChatService returns the chat service instance
func GetChatService() *services.ChatService {
	return chatServiceInstance
}

// SetHub sets the realtime hub that websocket connections join
func SetHub(h *realtime.Hub) {
	hubInstance = h
}

// GetHub returns the realtime hub instance
func GetHub() *realtime.Hub {
	return hubInstance
}
