package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/controllers"
	"github.com/kendall-kelly/delyra-api/events"
	"github.com/kendall-kelly/delyra-api/metrics"
	"github.com/kendall-kelly/delyra-api/models"
	"github.com/kendall-kelly/delyra-api/realtime"
	"github.com/kendall-kelly/delyra-api/routes"
	"github.com/kendall-kelly/delyra-api/services"
	"github.com/kendall-kelly/delyra-api/tests/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// OrderAcceptanceTestSuite runs the marketplace flow against a live listener
type OrderAcceptanceTestSuite struct {
	suite.Suite
	server    *httptest.Server
	db        *gorm.DB
	queue     *services.TaskQueue
	push      *services.MockPushService
	publisher *events.MockPublisher

	client   models.User
	merchant models.User
	driver   models.User
	rival    models.User
	business models.Business
	product  models.Product
}

// SetupTest builds a fresh database and server for each test
func (suite *OrderAcceptanceTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	t := suite.T()

	suite.db = testutil.NewTestDB(t)
	m := metrics.New(prometheus.NewRegistry())
	suite.queue = services.NewTaskQueue(2, 64, m)
	suite.push = services.NewMockPushService()
	suite.publisher = events.NewMockPublisher()

	notifier := services.NewNotificationService(suite.db, suite.push, suite.queue, m)
	chat := services.NewChatService(suite.db, notifier, m)
	controllers.SetNotificationService(notifier)
	controllers.SetOrderService(services.NewOrderService(suite.db, notifier, suite.queue, suite.publisher, m))
	controllers.SetChatService(chat)
	controllers.SetHub(realtime.NewHub(chat, realtime.WithTaskQueue(suite.queue), realtime.WithMetrics(m)))

	router := gin.New()
	router.Use(gin.Recovery())
	suite.Require().NoError(routes.Register(router.Group("/api/v1"), testutil.TestConfig()))
	suite.server = httptest.NewServer(router)

	suite.client = testutil.CreateUser(t, suite.db, "client", models.RoleClient)
	suite.merchant = testutil.CreateUser(t, suite.db, "merchant", models.RoleMerchant)
	suite.driver = testutil.CreateUser(t, suite.db, "driver", models.RoleDelivery)
	suite.rival = testutil.CreateUser(t, suite.db, "rival", models.RoleDelivery)
	suite.business = testutil.CreateBusiness(t, suite.db, suite.merchant.ID, "Taco Stand")
	suite.product = testutil.CreateProduct(t, suite.db, suite.business.ID, "Al Pastor", "4.50", 5)
}

// TearDownTest stops the server and drains background work
func (suite *OrderAcceptanceTestSuite) TearDownTest() {
	suite.server.Close()
	suite.queue.Close()
}

// call sends an authenticated JSON request and returns status and envelope
func (suite *OrderAcceptanceTestSuite) call(user models.User, method, path string, body interface{}) (int, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, suite.server.URL+path, &buf)
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testutil.MintToken(suite.T(), user.ID, user.Role))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	var response map[string]interface{}
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))
	return resp.StatusCode, response
}

func (suite *OrderAcceptanceTestSuite) unreadCount(user models.User) float64 {
	status, response := suite.call(user, http.MethodGet, "/api/v1/notifications/unread-count", nil)
	if status != http.StatusOK {
		return -1
	}
	return response["data"].(map[string]interface{})["count"].(float64)
}

func (suite *OrderAcceptanceTestSuite) setStatus(user models.User, orderID uint, status string) int {
	code, _ := suite.call(user, http.MethodPut, fmt.Sprintf("/api/v1/orders/%d/status", orderID),
		map[string]interface{}{"status": status})
	return code
}

// TestDeliveryFlow follows one order from placement to delivery
func (suite *OrderAcceptanceTestSuite) TestDeliveryFlow() {
	t := suite.T()
	var orderID uint

	t.Run("Client places an order", func(t *testing.T) {
		status, response := suite.call(suite.client, http.MethodPost, "/api/v1/orders", map[string]interface{}{
			"business_id": suite.business.ID,
			"items": []map[string]interface{}{
				{"product_id": suite.product.ID, "quantity": 2, "price": "4.50"},
			},
			"delivery_address": "9 Harbour Rd",
			"total_amount":     "9.00",
		})
		assert.Equal(t, http.StatusCreated, status)
		data := response["data"].(map[string]interface{})
		orderID = uint(data["order_id"].(float64))
		assert.NotZero(t, orderID)
		assert.Equal(t, 3, testutil.ProductStock(t, suite.db, suite.product.ID))
	})
	suite.Require().NotZero(orderID)

	t.Run("Merchant sees and confirms it", func(t *testing.T) {
		assert.Eventually(t, func() bool { return suite.unreadCount(suite.merchant) == 1 },
			2*time.Second, 20*time.Millisecond, "merchant gets a new_order notification")

		status, response := suite.call(suite.merchant, http.MethodGet, "/api/v1/orders", nil)
		assert.Equal(t, http.StatusOK, status)
		orders := response["data"].([]interface{})
		assert.Len(t, orders, 1)
		assert.Equal(t, "Taco Stand", orders[0].(map[string]interface{})["business_name"])

		assert.Equal(t, http.StatusOK, suite.setStatus(suite.merchant, orderID, models.StatusConfirmed))
		assert.Eventually(t, func() bool { return suite.unreadCount(suite.client) == 1 },
			2*time.Second, 20*time.Millisecond, "client is told the order was confirmed")
	})

	t.Run("First driver wins the claim", func(t *testing.T) {
		status, _ := suite.call(suite.driver, http.MethodPut, fmt.Sprintf("/api/v1/orders/%d/accept", orderID), nil)
		assert.Equal(t, http.StatusOK, status)

		status, response := suite.call(suite.rival, http.MethodPut, fmt.Sprintf("/api/v1/orders/%d/accept", orderID), nil)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "ALREADY_CLAIMED", response["error"].(map[string]interface{})["code"])
	})

	t.Run("Ready notifies the assigned driver", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, suite.setStatus(suite.merchant, orderID, models.StatusReady))
		assert.Eventually(t, func() bool { return suite.unreadCount(suite.driver) == 1 },
			2*time.Second, 20*time.Millisecond)
		assert.Equal(t, float64(0), suite.unreadCount(suite.rival))
	})

	t.Run("Driver completes the delivery", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, suite.setStatus(suite.driver, orderID, models.StatusPickedUp))
		assert.Equal(t, http.StatusOK, suite.setStatus(suite.driver, orderID, models.StatusDelivered))

		status, response := suite.call(suite.driver, http.MethodGet, "/api/v1/orders", nil)
		assert.Equal(t, http.StatusOK, status)
		orders := response["data"].([]interface{})
		assert.Len(t, orders, 1)
		assert.Equal(t, models.StatusDelivered, orders[0].(map[string]interface{})["status"])
	})

	t.Run("Client reads every update", func(t *testing.T) {
		assert.Eventually(t, func() bool { return suite.unreadCount(suite.client) == 4 },
			2*time.Second, 20*time.Millisecond)

		status, response := suite.call(suite.client, http.MethodPut, "/api/v1/notifications/read-all", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(4), response["data"].(map[string]interface{})["updated"])
		assert.Equal(t, float64(0), suite.unreadCount(suite.client))
	})

	assert.Equal(t, []string{
		events.OrderPlaced,
		events.OrderStatusChanged,
		events.OrderAccepted,
		events.OrderStatusChanged,
		events.OrderStatusChanged,
		events.OrderStatusChanged,
	}, suite.publisher.Types())
}

// TestPushFollowsRegisteredToken delivers pushes only after a token is registered
func (suite *OrderAcceptanceTestSuite) TestPushFollowsRegisteredToken() {
	status, _ := suite.call(suite.merchant, http.MethodPut, "/api/v1/users/me/push-token",
		map[string]interface{}{"token": "device-abc"})
	suite.Equal(http.StatusOK, status)

	status, _ = suite.call(suite.client, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"business_id": suite.business.ID,
		"items": []map[string]interface{}{
			{"product_id": suite.product.ID, "quantity": 1, "price": "4.50"},
		},
		"delivery_address": "9 Harbour Rd",
		"total_amount":     "4.50",
	})
	suite.Equal(http.StatusCreated, status)

	suite.Eventually(func() bool { return len(suite.push.Sent()) == 1 }, 2*time.Second, 20*time.Millisecond)
	sent := suite.push.Sent()[0]
	suite.Equal("device-abc", sent.Token)
	suite.Equal(services.NotificationNewOrder, sent.Data["type"])
}

// TestOutOfStockIsReported leaves stock and the order list untouched
func (suite *OrderAcceptanceTestSuite) TestOutOfStockIsReported() {
	status, response := suite.call(suite.client, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"business_id": suite.business.ID,
		"items": []map[string]interface{}{
			{"product_id": suite.product.ID, "quantity": 6, "price": "4.50"},
		},
		"delivery_address": "9 Harbour Rd",
		"total_amount":     "27.00",
	})

	suite.Equal(http.StatusBadRequest, status)
	errObj := response["error"].(map[string]interface{})
	suite.Equal("INSUFFICIENT_STOCK", errObj["code"])
	details := errObj["details"].(map[string]interface{})
	suite.Equal(float64(5), details["available"])

	status, response = suite.call(suite.client, http.MethodGet, "/api/v1/orders", nil)
	suite.Equal(http.StatusOK, status)
	suite.Empty(response["data"])
	suite.Equal(5, testutil.ProductStock(suite.T(), suite.db, suite.product.ID))
}

// TestRunSuite runs the acceptance test suite
func TestOrderAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderAcceptanceTestSuite))
}
