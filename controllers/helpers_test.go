package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/events"
	"github.com/kendall-kelly/delyra-api/metrics"
	"github.com/kendall-kelly/delyra-api/models"
	"github.com/kendall-kelly/delyra-api/realtime"
	"github.com/kendall-kelly/delyra-api/services"
	"github.com/kendall-kelly/delyra-api/tests/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// apiFixture wires real services over an in-memory database. Side effects run inline.
type apiFixture struct {
	db        *gorm.DB
	publisher *events.MockPublisher
	client    models.User
	other     models.User
	merchant  models.User
	driver    models.User
	admin     models.User
	business  models.Business
	product   models.Product
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	m := metrics.New(prometheus.NewRegistry())
	publisher := events.NewMockPublisher()
	notifier := services.NewNotificationService(db, nil, nil, m)
	chat := services.NewChatService(db, notifier, m)

	SetNotificationService(notifier)
	SetOrderService(services.NewOrderService(db, notifier, nil, publisher, m))
	SetChatService(chat)
	SetHub(realtime.NewHub(chat, realtime.WithMetrics(m)))

	f := &apiFixture{db: db, publisher: publisher}
	f.client = testutil.CreateUser(t, db, "client", models.RoleClient)
	f.other = testutil.CreateUser(t, db, "other", models.RoleClient)
	f.merchant = testutil.CreateUser(t, db, "merchant", models.RoleMerchant)
	f.driver = testutil.CreateUser(t, db, "driver", models.RoleDelivery)
	f.admin = testutil.CreateUser(t, db, "admin", models.RoleAdmin)
	f.business = testutil.CreateBusiness(t, db, f.merchant.ID, "Pizzeria")
	f.product = testutil.CreateProduct(t, db, f.business.ID, "Margherita", "9.50", 5)
	return f
}

// placeOrder places an order for the fixture client directly through the service
func (f *apiFixture) placeOrder(t *testing.T, qty int) *models.Order {
	t.Helper()

	price := decimal.RequireFromString("9.50")
	order, err := GetOrderService().PlaceOrder(context.Background(), services.PlaceOrderInput{
		ClientID:        f.client.ID,
		BusinessID:      f.business.ID,
		Items:           []services.PlaceOrderItem{{ProductID: f.product.ID, Quantity: qty, Price: price}},
		DeliveryAddress: "1 Main St",
		TotalAmount:     price.Mul(decimal.NewFromInt(int64(qty))),
	})
	require.NoError(t, err)
	return order
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// performRequest sends a JSON request and decodes the envelope
func performRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w, response
}

// assertErrorCode checks a failure envelope
func assertErrorCode(t *testing.T, response map[string]interface{}, code string) {
	t.Helper()

	assert.False(t, response["success"].(bool))
	errorData, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response has no error object")
	assert.Equal(t, code, errorData["code"])
}
