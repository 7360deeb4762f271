package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/middleware"
	"github.com/kendall-kelly/delyra-api/models"
	"github.com/kendall-kelly/delyra-api/services"
	"github.com/shopspring/decimal"
)

// CreateOrderItemRequest is one line of a CreateOrderRequest
type CreateOrderItemRequest struct {
	ProductID uint            `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// CreateOrderRequest represents the request body for placing an order
type CreateOrderRequest struct {
	BusinessID      uint                     `json:"business_id" binding:"required"`
	Items           []CreateOrderItemRequest `json:"items"`
	DeliveryAddress string                   `json:"delivery_address" binding:"required"`
	TotalAmount     decimal.Decimal          `json:"total_amount"`
	CouponID        *uint                    `json:"coupon_id"`
}

// UpdateStatusRequest represents the request body for changing an order status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AssignDriverRequest represents the request body for assigning a driver
type AssignDriverRequest struct {
	DriverID uint `json:"driver_id"`
}

// ListOrders handles GET /api/v1/orders - lists the orders visible to the caller's role
func ListOrders(c *gin.Context) {
	userID, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	orders, err := GetOrderService().ListOrders(c.Request.Context(), userID, role)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, orders)
}

// GetOrderItems handles GET /api/v1/orders/:id/items
func GetOrderItems(c *gin.Context) {
	userID, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	items, err := GetOrderService().OrderItems(c.Request.Context(), userID, role, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, items)
}

// ListAvailableDrivers handles GET /api/v1/orders/drivers/available (merchant, admin)
func ListAvailableDrivers(c *gin.Context) {
	_, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	drivers, err := GetOrderService().AvailableDrivers(c.Request.Context(), role)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, drivers)
}

// CreateOrder handles POST /api/v1/orders - places a new order (clients only)
func CreateOrder(c *gin.Context) {
	userID, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	if role != models.RoleClient {
		respondError(c, services.ForbiddenError("Only clients can place orders"))
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.TotalAmount.IsNegative() {
		respondError(c, services.ValidationError(services.CodeValidation, "total_amount cannot be negative"))
		return
	}

	items := make([]services.PlaceOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Price.IsNegative() {
			respondError(c, services.ValidationError(services.CodeValidation, "price cannot be negative").
				WithDetails(gin.H{"product_id": item.ProductID}))
			return
		}
		items = append(items, services.PlaceOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	order, err := GetOrderService().PlaceOrder(c.Request.Context(), services.PlaceOrderInput{
		ClientID:        userID,
		BusinessID:      req.BusinessID,
		Items:           items,
		DeliveryAddress: req.DeliveryAddress,
		TotalAmount:     req.TotalAmount,
		CouponID:        req.CouponID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, gin.H{
		"order_id": order.ID,
		"order":    order,
	})
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status
func UpdateOrderStatus(c *gin.Context) {
	_, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := GetOrderService().UpdateStatus(c.Request.Context(), orderID, role, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, order)
}

// AssignDriver handles PUT /api/v1/orders/:id/assign-driver (merchant, admin)
func AssignDriver(c *gin.Context) {
	_, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	driver, err := GetOrderService().AssignDriver(c.Request.Context(), role, orderID, req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"order_id": orderID,
		"driver":   driver,
	})
}

// AcceptOrder handles PUT /api/v1/orders/:id/accept - a driver claims an unassigned order
func AcceptOrder(c *gin.Context) {
	userID, role, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := GetOrderService().AcceptOrder(c.Request.Context(), role, orderID, userID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"order_id":           orderID,
		"delivery_driver_id": userID,
	})
}
