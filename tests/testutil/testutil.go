package testutil

import (
	"fmt"
	"os"
	"testing"

	"github.com/kendall-kelly/delyra-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}

	// Verify it was set
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// NewTestDB opens an in-memory sqlite database with every model migrated.
// The pool is pinned to one connection so all queries see the same database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given role
func CreateUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()

	user := models.User{
		Name:  name,
		Email: fmt.Sprintf("%s@example.com", name),
		Role:  role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", name, err)
	}
	return user
}

// CreateBusiness inserts a business owned by ownerID
func CreateBusiness(t *testing.T, db *gorm.DB, ownerID uint, name string) models.Business {
	t.Helper()

	business := models.Business{OwnerID: ownerID, Name: name, Status: "approved"}
	if err := db.Create(&business).Error; err != nil {
		t.Fatalf("Failed to create business %s: %v", name, err)
	}
	return business
}

// CreateProduct inserts an available product with the given price and stock
func CreateProduct(t *testing.T, db *gorm.DB, businessID uint, name, price string, stock int) models.Product {
	t.Helper()

	product := models.Product{
		BusinessID: businessID,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Available:  true,
		Stock:      stock,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("Failed to create product %s: %v", name, err)
	}
	return product
}

// ProductStock reads a product's current stock
func ProductStock(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()

	var product models.Product
	if err := db.First(&product, productID).Error; err != nil {
		t.Fatalf("Failed to load product %d: %v", productID, err)
	}
	return product.Stock
}
