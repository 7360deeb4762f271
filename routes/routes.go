package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/config"
	"github.com/kendall-kelly/delyra-api/controllers"
	"github.com/kendall-kelly/delyra-api/middleware"
	"github.com/kendall-kelly/delyra-api/models"
)

// Register mounts every authenticated endpoint under v1.
// Handlers read their services from the controllers package, so those must be set first.
func Register(v1 *gin.RouterGroup, cfg *config.Config) error {
	auth, err := middleware.EnsureValidToken(cfg)
	if err != nil {
		return err
	}
	api := v1.Group("", auth)

	staff := middleware.RequireRole(models.RoleMerchant, models.RoleAdmin)

	orders := api.Group("/orders")
	{
		orders.GET("", controllers.ListOrders)
		orders.POST("", middleware.RequireRole(models.RoleClient), controllers.CreateOrder)
		orders.GET("/drivers/available", staff, controllers.ListAvailableDrivers)
		orders.GET("/:id/items", controllers.GetOrderItems)
		orders.PUT("/:id/status", controllers.UpdateOrderStatus)
		orders.PUT("/:id/assign-driver", staff, controllers.AssignDriver)
		orders.PUT("/:id/accept", middleware.RequireRole(models.RoleDelivery), controllers.AcceptOrder)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", controllers.ListNotifications)
		notifications.GET("/unread-count", controllers.GetUnreadCount)
		notifications.PUT("/read-all", controllers.MarkAllNotificationsRead)
		notifications.GET("/preferences", controllers.GetPreferences)
		notifications.PUT("/preferences", controllers.UpdatePreference)
		notifications.PUT("/:id/read", controllers.MarkNotificationRead)
	}

	api.PUT("/users/me/push-token", controllers.UpdatePushToken)

	chat := api.Group("/chat")
	{
		chat.GET("/history/:user1/:user2", controllers.GetChatHistory)
		chat.GET("/unread/:userId", controllers.GetChatUnread)
		chat.PATCH("/read", controllers.MarkChatRead)
	}

	api.GET("/ws", controllers.ChatSocket(cfg.CORSAllowedOrigins))
	return nil
}
