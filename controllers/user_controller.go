package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/middleware"
)

// PushTokenRequest represents the request body for registering a device push token
type PushTokenRequest struct {
	Token string `json:"token"`
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token - an empty token clears it
func UpdatePushToken(c *gin.Context) {
	userID, _, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	token := strings.TrimSpace(req.Token)
	if err := GetNotificationService().SetPushToken(c.Request.Context(), userID, token); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"registered": token != ""})
}
