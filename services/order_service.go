package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/kendall-kelly/delyra-api/events"
	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/metrics"
	"github.com/kendall-kelly/delyra-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// statuses a delivery driver may set
var driverStatuses = map[string]bool{
	models.StatusPickedUp:  true,
	models.StatusDelivered: true,
}

// client-facing wording per status; only these statuses notify the client
var clientStatusLabels = map[string]string{
	models.StatusConfirmed: "confirmed",
	models.StatusReady:     "ready for pickup",
	models.StatusPickedUp:  "on the way",
	models.StatusDelivered: "delivered",
	models.StatusCancelled: "cancelled",
}

// PlaceOrderItem is one requested line. Price is the caller-supplied unit price.
type PlaceOrderItem struct {
	ProductID uint
	Quantity  int
	Price     decimal.Decimal
}

// PlaceOrderInput carries everything needed to place an order
type PlaceOrderInput struct {
	ClientID        uint
	BusinessID      uint
	Items           []PlaceOrderItem
	DeliveryAddress string
	TotalAmount     decimal.Decimal
	CouponID        *uint
}

// OrderSummary is an order row with the display names the order list needs
type OrderSummary struct {
	models.Order
	BusinessName string  `json:"business_name"`
	OwnerID      uint    `json:"owner_id"`
	ClientName   string  `json:"client_name"`
	DriverName   *string `json:"driver_name"`
}

// OrderItemView is an order line with its product name
type OrderItemView struct {
	models.OrderItem
	ProductName string `json:"product_name"`
}

// OrderService owns the order lifecycle and the product stock ledger
type OrderService struct {
	db       *gorm.DB
	notifier Notifier
	queue    *TaskQueue
	events   events.Publisher
	metrics  *metrics.Metrics
}

// NewOrderService wires the order lifecycle. queue may be nil to run side effects inline.
func NewOrderService(db *gorm.DB, notifier Notifier, queue *TaskQueue, publisher events.Publisher, m *metrics.Metrics) *OrderService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &OrderService{db: db, notifier: notifier, queue: queue, events: publisher, metrics: m}
}

// PlaceOrder validates stock and creates the order, its items, the coupon usage
// and the stock decrements in one transaction. Nothing is written when any item fails.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	order, err := s.placeOrder(ctx, in)
	if err != nil {
		if se := AsError(err); se.Kind != KindDependency {
			s.metrics.OrderRejected(se.Code)
		}
		return nil, err
	}
	s.metrics.OrderPlaced()

	itemQty := make([]events.ItemQty, 0, len(in.Items))
	for _, item := range in.Items {
		itemQty = append(itemQty, events.ItemQty{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	s.publish(ctx, events.OrderPlaced, order.ID, events.OrderPlacedPayload{
		OrderID:     order.ID,
		ClientID:    order.ClientID,
		BusinessID:  order.BusinessID,
		TotalAmount: order.TotalAmount,
		Items:       itemQty,
	})

	orderID, businessID := order.ID, order.BusinessID
	s.background(ctx, "notify_new_order", func(ctx context.Context) error {
		ownerID, err := s.businessOwner(ctx, businessID)
		if err != nil {
			return err
		}
		_, err = s.notifier.Create(ctx, ownerID, NotificationNewOrder, "New order",
			fmt.Sprintf("You have a new order #%d", orderID), &orderID)
		return err
	})

	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, ValidationError(CodeNoItems, "No items in order")
	}

	requested := make(map[uint]int, len(in.Items))
	ids := make([]uint, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, ValidationError(CodeValidation, "Item quantity must be greater than zero").
				WithDetails(map[string]interface{}{"product_id": item.ProductID})
		}
		if _, seen := requested[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var products []models.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return DependencyError("Failed to load products", err)
		}
		byID := make(map[uint]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		for _, item := range in.Items {
			product, ok := byID[item.ProductID]
			if !ok {
				return NotFoundError(CodeProductNotFound, fmt.Sprintf("Product %d not found", item.ProductID))
			}
			if product.Stock < requested[item.ProductID] {
				return insufficientStock(product, requested[item.ProductID])
			}
			if !product.Available {
				return ValidationError(CodeProductUnavailable, fmt.Sprintf("%s is currently not available", product.Name)).
					WithDetails(map[string]interface{}{"product_id": product.ID})
			}
		}

		order = models.Order{
			ClientID:        in.ClientID,
			BusinessID:      in.BusinessID,
			TotalAmount:     in.TotalAmount,
			Status:          models.StatusPlaced,
			DeliveryAddress: in.DeliveryAddress,
		}
		if err := tx.Create(&order).Error; err != nil {
			return DependencyError("Failed to create order", err)
		}

		if in.CouponID != nil {
			usage := models.CouponUsage{CouponID: *in.CouponID, UserID: in.ClientID, OrderID: &order.ID}
			if err := tx.Create(&usage).Error; err != nil {
				return DependencyError("Failed to record coupon usage", err)
			}
		}

		items := make([]models.OrderItem, 0, len(in.Items))
		for _, item := range in.Items {
			items = append(items, models.OrderItem{
				OrderID:     order.ID,
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				PriceAtTime: item.Price,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return DependencyError("Failed to create order items", err)
		}

		for _, item := range in.Items {
			ok, err := decrementStock(tx, item.ProductID, item.Quantity)
			if err != nil {
				return DependencyError("Failed to update stock", err)
			}
			if !ok {
				return insufficientStock(byID[item.ProductID], item.Quantity)
			}
		}

		order.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// decrementStock is the ledger's conditional write. It reports false when the
// product no longer has qty units, leaving the row unchanged.
func decrementStock(tx *gorm.DB, productID uint, qty int) (bool, error) {
	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func insufficientStock(p models.Product, requested int) *Error {
	return ValidationError(CodeInsufficientStock, fmt.Sprintf("Insufficient stock for %s. Available: %d", p.Name, p.Stock)).
		WithDetails(map[string]interface{}{
			"product_id": p.ID,
			"available":  p.Stock,
			"requested":  requested,
		})
}

// UpdateStatus sets the order status. Only the caller's role is checked, not the current status.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, role, status string) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, ValidationError(CodeInvalidStatus, "Invalid status").
			WithDetails(map[string]interface{}{"allowed": models.OrderStatuses})
	}
	switch role {
	case models.RoleDelivery:
		if !driverStatuses[status] {
			return nil, ForbiddenError("Delivery drivers can only set picked_up or delivered")
		}
	case models.RoleMerchant, models.RoleAdmin:
	default:
		return nil, ForbiddenError("Only merchants, admins and delivery drivers can change order status")
	}

	db := s.db.WithContext(ctx)
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := db.Model(order).Update("status", status).Error; err != nil {
		return nil, DependencyError("Failed to update order status", err)
	}
	order.Status = status

	s.publish(ctx, events.OrderStatusChanged, order.ID, events.StatusChangedPayload{
		OrderID: order.ID,
		Status:  status,
		Role:    role,
	})

	id := order.ID
	if label, ok := clientStatusLabels[status]; ok {
		clientID := order.ClientID
		s.background(ctx, "notify_order_update", func(ctx context.Context) error {
			_, err := s.notifier.Create(ctx, clientID, NotificationOrderUpdate, "Order update",
				fmt.Sprintf("Your order #%d is %s", id, label), &id)
			return err
		})
	}
	if status == models.StatusReady && order.DeliveryDriverID != nil {
		driverID := *order.DeliveryDriverID
		s.background(ctx, "notify_order_ready", func(ctx context.Context) error {
			_, err := s.notifier.Create(ctx, driverID, NotificationOrderReady, "Order ready",
				fmt.Sprintf("Order #%d is ready for pickup", id), &id)
			return err
		})
	}

	return order, nil
}

// AssignDriver sets the order's driver regardless of any previous assignment
func (s *OrderService) AssignDriver(ctx context.Context, role string, orderID, driverID uint) (*models.User, error) {
	if role != models.RoleAdmin && role != models.RoleMerchant {
		return nil, ForbiddenError("Only admin or merchant can assign drivers")
	}
	if driverID == 0 {
		return nil, ValidationError(CodeValidation, "driver_id is required")
	}

	db := s.db.WithContext(ctx)
	var driver models.User
	err := db.Where("id = ? AND role = ?", driverID, models.RoleDelivery).First(&driver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError(CodeDriverNotFound, "Delivery driver not found")
	}
	if err != nil {
		return nil, DependencyError("Failed to load driver", err)
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := db.Model(order).Update("delivery_driver_id", driver.ID).Error; err != nil {
		return nil, DependencyError("Failed to assign driver", err)
	}

	s.publish(ctx, events.OrderDriverAssigned, order.ID, events.DriverPayload{OrderID: order.ID, DriverID: driver.ID})
	return &driver, nil
}

// AcceptOrder lets a delivery driver claim an unassigned order. At most one
// concurrent claim succeeds; the rest get ALREADY_CLAIMED or CLAIM_LOST.
func (s *OrderService) AcceptOrder(ctx context.Context, role string, orderID, driverID uint) error {
	if role != models.RoleDelivery {
		return ForbiddenError("Only delivery drivers can accept orders")
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.DeliveryDriverID != nil {
		s.metrics.DriverClaim(metrics.OutcomeAlready)
		return ConflictError(CodeAlreadyClaimed, "The order already has a delivery driver")
	}

	if err := s.claimOrder(ctx, orderID, driverID); err != nil {
		return err
	}
	s.metrics.DriverClaim(metrics.OutcomeWon)

	s.publish(ctx, events.OrderAccepted, orderID, events.DriverPayload{OrderID: orderID, DriverID: driverID})

	businessID := order.BusinessID
	s.background(ctx, "notify_order_accepted", func(ctx context.Context) error {
		ownerID, err := s.businessOwner(ctx, businessID)
		if err != nil {
			return err
		}
		_, err = s.notifier.Create(ctx, ownerID, NotificationOrderAccepted, "Order accepted",
			fmt.Sprintf("A driver has accepted order #%d", orderID), &orderID)
		return err
	})
	return nil
}

// claimOrder is the conditional write behind AcceptOrder
func (s *OrderService) claimOrder(ctx context.Context, orderID, driverID uint) error {
	result := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND delivery_driver_id IS NULL", orderID).
		Update("delivery_driver_id", driverID)
	if result.Error != nil {
		return DependencyError("Failed to accept order", result.Error)
	}
	if result.RowsAffected == 0 {
		s.metrics.DriverClaim(metrics.OutcomeLost)
		return ConflictError(CodeClaimLost, "Could not accept the order, another driver may have taken it")
	}
	return nil
}

// ListOrders returns the orders visible to the caller's role, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID uint, role string) ([]OrderSummary, error) {
	db := s.db.WithContext(ctx)
	q := db.Table("orders o").
		Select("o.*, b.name AS business_name, b.owner_id AS owner_id, u.name AS client_name, d.name AS driver_name").
		Joins("JOIN businesses b ON o.business_id = b.id").
		Joins("JOIN users u ON o.client_id = u.id").
		Joins("LEFT JOIN users d ON o.delivery_driver_id = d.id")

	switch role {
	case models.RoleClient:
		q = q.Where("o.client_id = ?", userID)
	case models.RoleDelivery:
		q = q.Where("o.delivery_driver_id = ? OR (o.delivery_driver_id IS NULL AND o.status IN ?)",
			userID, []string{models.StatusConfirmed, models.StatusPreparing, models.StatusReady})
	case models.RoleMerchant:
		var business models.Business
		err := db.Where("owner_id = ?", userID).Take(&business).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []OrderSummary{}, nil
		}
		if err != nil {
			return nil, DependencyError("Failed to load business", err)
		}
		q = q.Where("o.business_id = ?", business.ID)
	case models.RoleAdmin:
	default:
		return nil, ForbiddenError("Unknown role")
	}

	orders := []OrderSummary{}
	if err := q.Order("o.created_at DESC, o.id DESC").Scan(&orders).Error; err != nil {
		return nil, DependencyError("Failed to retrieve orders", err)
	}
	return orders, nil
}

// OrderItems returns the lines of an order. Clients may only read their own orders.
func (s *OrderService) OrderItems(ctx context.Context, userID uint, role string, orderID uint) ([]OrderItemView, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleClient && order.ClientID != userID {
		return nil, ForbiddenError("You can only view your own orders")
	}

	items := []OrderItemView{}
	err = s.db.WithContext(ctx).Table("order_items oi").
		Select("oi.*, p.name AS product_name").
		Joins("JOIN products p ON oi.product_id = p.id").
		Where("oi.order_id = ?", orderID).
		Order("oi.id").
		Scan(&items).Error
	if err != nil {
		return nil, DependencyError("Failed to retrieve order items", err)
	}
	return items, nil
}

// AvailableDrivers lists users with the delivery role
func (s *OrderService) AvailableDrivers(ctx context.Context, role string) ([]models.User, error) {
	if role != models.RoleAdmin && role != models.RoleMerchant {
		return nil, ForbiddenError("Only admin or merchant can list drivers")
	}
	drivers := []models.User{}
	err := s.db.WithContext(ctx).
		Select("id", "name", "email", "phone", "role", "status", "created_at", "updated_at").
		Where("role = ?", models.RoleDelivery).
		Order("name").
		Find(&drivers).Error
	if err != nil {
		return nil, DependencyError("Failed to retrieve drivers", err)
	}
	return drivers, nil
}

func (s *OrderService) findOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError(CodeOrderNotFound, "Order not found")
	}
	if err != nil {
		return nil, DependencyError("Failed to load order", err)
	}
	return &order, nil
}

func (s *OrderService) businessOwner(ctx context.Context, businessID uint) (uint, error) {
	var business models.Business
	if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&business, businessID).Error; err != nil {
		return 0, fmt.Errorf("load business %d: %w", businessID, err)
	}
	return business.OwnerID, nil
}

func (s *OrderService) background(ctx context.Context, name string, fn Task) {
	if s.queue == nil {
		if err := fn(ctx); err != nil {
			logger.FromContext(ctx).Warn("side effect failed", zap.String("task", name), zap.Error(err))
		}
		return
	}
	s.queue.Submit(ctx, name, fn)
}

func (s *OrderService) publish(ctx context.Context, eventType string, orderID uint, payload any) {
	if err := s.events.Publish(ctx, eventType, orderID, payload); err != nil {
		logger.FromContext(ctx).Warn("order event not published",
			zap.String("event_type", eventType),
			zap.Uint("order_id", orderID),
			zap.Error(err),
		)
	}
}
