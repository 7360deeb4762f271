package testutil

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/delyra-api/config"
	"github.com/kendall-kelly/delyra-api/middleware"
)

// Token settings shared by tests that exercise the real auth middleware
const (
	TestJWTSecret   = "test-secret-do-not-use-in-production"
	TestJWTIssuer   = "delyra"
	TestJWTAudience = "delyra-app"
)

// TestConfig returns a configuration suitable for tests
func TestConfig() *config.Config {
	return &config.Config{
		DatabaseURL:           "file::memory:",
		Port:                  "0",
		GoEnv:                 "test",
		ServiceName:           "delyra-api-test",
		JWTSecret:             TestJWTSecret,
		JWTIssuer:             TestJWTIssuer,
		JWTAudience:           TestJWTAudience,
		CORSAllowedOrigins:    []string{"http://localhost:8100"},
		KafkaOrderTopic:       "delyra.orders",
		NotificationWorkers:   1,
		NotificationQueueSize: 16,
		LogLevel:              "error",
		LogFormat:             "json",
	}
}

type tokenClaims struct {
	ID   uint   `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// MintToken signs an HS256 token for userID and role with the test secret
func MintToken(t *testing.T, userID uint, role string) string {
	t.Helper()
	return MintTokenWith(t, TestJWTSecret, TestJWTIssuer, TestJWTAudience, userID, role, time.Hour)
}

// MintTokenWith signs a token with explicit settings, for negative tests
func MintTokenWith(t *testing.T, secret, issuer, audience string, userID uint, role string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := tokenClaims{
		ID:   userID,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

// MockAuthMiddleware authenticates every request as userID with role
func MockAuthMiddleware(userID uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetCurrentUser(c, userID, role)
		c.Next()
	}
}
