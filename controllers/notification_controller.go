package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/middleware"
)

// UpdatePreferenceRequest represents the request body for changing a notification preference
type UpdatePreferenceRequest struct {
	Type    string `json:"type" binding:"required"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

// ListNotifications handles GET /api/v1/notifications - the caller's latest notifications
func ListNotifications(c *gin.Context) {
	userID, _, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	notifications, err := GetNotificationService().List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, notifications)
}

// GetUnreadCount handles GET /api/v1/notifications/unread-count
func GetUnreadCount(c *gin.Context) {
	userID, _, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	count, err := GetNotificationService().UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"count": count})
}

// MarkNotificationRead handles PUT /api/v1/notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	userID, _, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	notificationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := GetNotificationService().MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"id": notificationID, "read": true})
}

// MarkAllNotificationsRead handles PUT /api/v1/notifications/read-all
func MarkAllNotificationsRead(c *gin.Context) {
	userID, _, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	updated, err := GetNotificationService().MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"updated": updated})
}

// GetPreferences handles GET /api/v1/notifications/preferences
func GetPreferences(c *gin.Context) {
	userID, _, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	prefs, err := GetNotificationService().Preferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, prefs)
}

// UpdatePreference handles PUT /api/v1/notifications/preferences
func UpdatePreference(c *gin.Context) {
	userID, _, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := GetNotificationService().SetPreference(c.Request.Context(), userID, req.Type, *req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"type": req.Type, "enabled": *req.Enabled})
}
