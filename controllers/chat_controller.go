package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/middleware"
	"github.com/kendall-kelly/delyra-api/models"
	"github.com/kendall-kelly/delyra-api/services"
)

// MarkChatReadRequest represents the request body for marking a conversation read
type MarkChatReadRequest struct {
	UserID  uint  `json:"userId" binding:"required"`
	OtherID uint  `json:"otherId" binding:"required"`
	OrderID *uint `json:"orderId"`
}

// callerMayActFor reports whether the caller is one of the given users or an admin
func callerMayActFor(callerID uint, role string, userIDs ...uint) bool {
	if role == models.RoleAdmin {
		return true
	}
	for _, id := range userIDs {
		if id == callerID {
			return true
		}
	}
	return false
}

// GetChatHistory handles GET /api/v1/chat/history/:user1/:user2?orderId=
func GetChatHistory(c *gin.Context) {
	callerID, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	user1, ok := parseIDParam(c, "user1")
	if !ok {
		return
	}
	user2, ok := parseIDParam(c, "user2")
	if !ok {
		return
	}
	orderID, err := parseOptionalID(c.Query("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !callerMayActFor(callerID, role, user1, user2) {
		respondError(c, services.ForbiddenError("You can only read your own conversations"))
		return
	}

	messages, err := GetChatService().History(c.Request.Context(), user1, user2, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, messages)
}

// GetChatUnread handles GET /api/v1/chat/unread/:userId - unread counts grouped by sender
func GetChatUnread(c *gin.Context) {
	callerID, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}
	if !callerMayActFor(callerID, role, userID) {
		respondError(c, services.ForbiddenError("You can only read your own unread counts"))
		return
	}

	counts, err := GetChatService().UnreadCounts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, counts)
}

// MarkChatRead handles PATCH /api/v1/chat/read
func MarkChatRead(c *gin.Context) {
	callerID, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req MarkChatReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if !callerMayActFor(callerID, role, req.UserID) {
		respondError(c, services.ForbiddenError("You can only mark your own messages read"))
		return
	}

	updated, err := GetChatService().MarkRead(c.Request.Context(), req.UserID, req.OtherID, req.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"updated": updated})
}
