package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/middleware"
	"github.com/kendall-kelly/delyra-api/realtime"
	"go.uber.org/zap"
)

// newUpgrader accepts requests without an Origin header (native apps) and
// requests from one of the allowed origins
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// ChatSocket handles GET /api/v1/ws - upgrades an authenticated request to a chat socket
func ChatSocket(allowedOrigins []string) gin.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)
	return func(c *gin.Context) {
		userID, role, err := middleware.GetCurrentUser(c)
		if err != nil {
			respondUnauthorized(c)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader has already written the failure response
			logger.FromContext(c.Request.Context()).Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := realtime.NewClient(c.Request.Context(), GetHub(), conn, userID, role)
		client.Run()
	}
}
