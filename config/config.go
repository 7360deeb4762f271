package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// defaultCORSOrigins mirrors the origins the mobile and web clients are served from
var defaultCORSOrigins = []string{
	"capacitor://localhost",
	"http://localhost",
	"http://localhost:4200",
	"http://localhost:8100",
}

// Config holds all application configuration
type Config struct {
	DatabaseURL           string
	Port                  string
	GoEnv                 string
	ServiceName           string
	JWTSecret             string
	JWTIssuer             string
	JWTAudience           string
	CORSAllowedOrigins    []string
	RedisAddr             string
	KafkaBrokers          []string
	KafkaOrderTopic       string
	FirebaseCredentials   string
	FirebaseAccountJSON   string
	NotificationWorkers   int
	NotificationQueueSize int
	LogLevel              string
	LogFormat             string
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production, environment variables are set directly
			// so it's okay if .env files don't exist
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		Port:                  getEnv("PORT", "8080"),
		GoEnv:                 getEnv("GO_ENV", "development"),
		ServiceName:           getEnv("SERVICE_NAME", "delyra-api"),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		JWTIssuer:             getEnv("JWT_ISSUER", "delyra"),
		JWTAudience:           getEnv("JWT_AUDIENCE", "delyra-app"),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		KafkaBrokers:          getEnvList("KAFKA_BROKERS", nil),
		KafkaOrderTopic:       getEnv("KAFKA_ORDER_TOPIC", "delyra.orders"),
		FirebaseCredentials:   getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseAccountJSON:   getEnv("FIREBASE_SERVICE_ACCOUNT", ""),
		NotificationWorkers:   getEnvInt("NOTIFICATION_WORKERS", 4),
		NotificationQueueSize: getEnvInt("NOTIFICATION_QUEUE_SIZE", 256),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" && !c.IsTest() {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is required", strings.Join(missing, ", "))
	}
	if c.NotificationWorkers < 1 {
		return fmt.Errorf("NOTIFICATION_WORKERS must be at least 1")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// PushEnabled reports whether a Firebase service account is configured
func (c *Config) PushEnabled() bool {
	return c.FirebaseCredentials != "" || c.FirebaseAccountJSON != ""
}

// GetConfig returns the configuration loaded by Load
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvList splits a comma-separated variable, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
