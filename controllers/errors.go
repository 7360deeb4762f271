package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/services"
	"go.uber.org/zap"
)

// respondError writes err in the standard failure envelope
func respondError(c *gin.Context, err error) {
	se := services.AsError(err)
	status := se.HTTPStatus()
	c.Set("error_code", se.Code)

	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("code", se.Code), zap.Error(err))
	}

	body := gin.H{
		"code":    se.Code,
		"message": se.Message,
	}
	if se.Details != nil {
		body["details"] = se.Details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondBindError reports a request body that failed to bind or validate
func respondBindError(c *gin.Context, err error) {
	c.Set("error_code", services.CodeValidation)
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    services.CodeValidation,
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

func respondUnauthorized(c *gin.Context) {
	c.Set("error_code", "UNAUTHORIZED")
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": "Could not extract user information",
		},
	})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// parseIDParam reads a positive numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, services.ValidationError(services.CodeValidation, "Invalid "+name))
		return 0, false
	}
	return uint(id), true
}

// parseOptionalID reads an optional positive numeric value; "" and "null" mean absent
func parseOptionalID(raw string) (*uint, error) {
	if raw == "" || raw == "null" || raw == "undefined" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, services.ValidationError(services.CodeValidation, "Invalid order id")
	}
	v := uint(id)
	return &v, nil
}
