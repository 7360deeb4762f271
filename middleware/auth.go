package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delyra-api/config"
	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/models"
	"go.uber.org/zap"
)

// Context keys set by EnsureValidToken
const (
	userIDKey = "user_id"
	roleKey   = "user_role"
	claimsKey = "validated_claims"
)

// CustomClaims contains the caller identity issued by the login service.
type CustomClaims struct {
	ID   uint   `json:"id"`
	Role string `json:"role"`
}

// Validate rejects tokens without a user id or with an unknown role.
func (c *CustomClaims) Validate(ctx context.Context) error {
	if c.ID == 0 {
		return errors.New("token has no user id")
	}
	if !models.IsValidRole(c.Role) {
		return errors.New("token has an unknown role")
	}
	return nil
}

// NewValidator builds the HS256 validator for the configured issuer and audience.
func NewValidator(cfg *config.Config) (*validator.Validator, error) {
	secret := []byte(cfg.JWTSecret)
	keyFunc := func(context.Context) (interface{}, error) {
		return secret, nil
	}

	return validator.New(
		keyFunc,
		validator.HS256,
		cfg.JWTIssuer,
		[]string{cfg.JWTAudience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
// The token is read from the Authorization header or, for websocket upgrades, the token query parameter.
func EnsureValidToken(cfg *config.Config) (gin.HandlerFunc, error) {
	jwtValidator, err := NewValidator(cfg)
	if err != nil {
		return nil, err
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.FromContext(r.Context()).Info("rejected token", zap.Error(err))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`))
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
		jwtmiddleware.WithTokenExtractor(jwtmiddleware.MultiTokenExtractor(
			jwtmiddleware.AuthHeaderTokenExtractor,
			jwtmiddleware.ParameterTokenExtractor("token"),
		)),
	)

	return func(c *gin.Context) {
		authorized := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			token, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			if !ok {
				return
			}
			claims, ok := token.CustomClaims.(*CustomClaims)
			if !ok {
				return
			}
			authorized = true

			c.Set(userIDKey, claims.ID)
			c.Set(roleKey, claims.Role)
			c.Set(claimsKey, token)
			c.Request = r.WithContext(logger.WithActor(r.Context(), claims.ID, claims.Role))
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !authorized {
			if !c.Writer.Written() {
				c.JSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INVALID_TOKEN",
						"message": "Failed to validate JWT.",
					},
				})
			}
			c.Abort()
			return
		}
		c.Next()
	}, nil
}

// GetCurrentUser returns the authenticated user id and role from the Gin context
func GetCurrentUser(c *gin.Context) (uint, string, error) {
	rawID, exists := c.Get(userIDKey)
	if !exists {
		return 0, "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}
	userID, ok := rawID.(uint)
	if !ok || userID == 0 {
		return 0, "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not valid"}
	}
	role, _ := c.Get(roleKey)
	roleStr, ok := role.(string)
	if !ok || roleStr == "" {
		return 0, "", &AuthError{Code: "MISSING_ROLE", Message: "Role not found in context"}
	}
	return userID, roleStr, nil
}

// SetCurrentUser stores an authenticated identity on the context (used by tests and internal callers)
func SetCurrentUser(c *gin.Context, userID uint, role string) {
	c.Set(userIDKey, userID)
	c.Set(roleKey, role)
	c.Set(claimsKey, &validator.ValidatedClaims{
		CustomClaims: &CustomClaims{ID: userID, Role: role},
	})
	if c.Request != nil {
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), userID, role))
	}
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// RequireRole is a middleware that only lets the given roles through
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		_, role, err := GetCurrentUser(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Could not extract user information",
				},
			})
			c.Abort()
			return
		}

		if !allowed[role] {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ROLE_FORBIDDEN",
					"message": "Insufficient permissions to access this resource",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
