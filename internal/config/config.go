package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Payment processor configuration
	Stripe StripeConfig

	// Static pages served to the browser client
	Static StaticConfig

	// Reporting queries
	Reports ReportsConfig

	// Payment audit database (optional)
	Database DatabaseConfig

	// JWT configuration for back-office tokens
	JWT JWTConfig

	// Back-office admin credentials
	Admin AdminConfig

	// CORS configuration
	CORS CORSConfig

	// Scheduled report job
	Cron CronConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// StripeConfig holds processor keys and defaults
type StripeConfig struct {
	SecretKey      string
	PublishableKey string // returned to the browser by GET /config
	WebhookSecret  string // empty disables signature verification
	Currency       string
	ReturnURL      string // return_url used when confirming lesson authorizations
	APIBaseURL     string // overrides the processor API host (stripe-mock, tests)
}

// StaticConfig holds the static page locations
type StaticConfig struct {
	Dir       string // STATIC_DIR of the browser client build
	ErrorPage string // fallback page when a static file is missing
}

// ReportsConfig holds reporting query settings
type ReportsConfig struct {
	Window             time.Duration // trailing window for lesson totals and failed payments
	BalancePageSize    int64
	IntentPageSize     int64
	RequireAuth        bool // protect reporting endpoints with an admin token
	PaymentMethodLimit int64
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string // empty means audit entries go to the log only
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// AdminConfig holds the back-office login
type AdminConfig struct {
	Email        string
	PasswordHash string // bcrypt hash, see cmd/generate-secrets
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// CronConfig holds the scheduled report job settings
type CronConfig struct {
	Enabled  bool
	Schedule string // seconds-precision cron expression
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "4242"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Stripe: StripeConfig{
			SecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			PublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			WebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:       getEnv("STRIPE_CURRENCY", "usd"),
			ReturnURL:      getEnv("STRIPE_RETURN_URL", "https://www.example.com"),
			APIBaseURL:     getEnv("STRIPE_API_BASE_URL", ""),
		},
		Static: StaticConfig{
			Dir:       getEnv("STATIC_DIR", "./client"),
			ErrorPage: getEnv("STATIC_ERROR_PAGE", "./public/static-file-error.html"),
		},
		Reports: ReportsConfig{
			Window:             getEnvAsDuration("REPORT_WINDOW", 36*time.Hour),
			BalancePageSize:    int64(getEnvAsInt("REPORT_BALANCE_PAGE_SIZE", 100)),
			IntentPageSize:     int64(getEnvAsInt("REPORT_INTENT_PAGE_SIZE", 100)),
			RequireAuth:        getEnvAsBool("REPORTS_REQUIRE_AUTH", false),
			PaymentMethodLimit: int64(getEnvAsInt("PAYMENT_METHOD_LIST_LIMIT", 3)),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Admin: AdminConfig{
			Email:        getEnv("ADMIN_EMAIL", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Stripe-Signature"}),
		},
		Cron: CronConfig{
			Enabled:  getEnvAsBool("REPORT_CRON_ENABLED", false),
			Schedule: getEnv("REPORT_CRON", "0 0 6 * * *"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}

	if c.Reports.Window <= 0 {
		return fmt.Errorf("REPORT_WINDOW must be positive")
	}

	// Stripe list endpoints accept limits between 1 and 100
	for name, size := range map[string]int64{
		"REPORT_BALANCE_PAGE_SIZE":  c.Reports.BalancePageSize,
		"REPORT_INTENT_PAGE_SIZE":   c.Reports.IntentPageSize,
		"PAYMENT_METHOD_LIST_LIMIT": c.Reports.PaymentMethodLimit,
	} {
		if size < 1 || size > 100 {
			return fmt.Errorf("%s must be between 1 and 100, got %d", name, size)
		}
	}

	// Admin login only matters when reporting is protected
	if c.Reports.RequireAuth {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required when REPORTS_REQUIRE_AUTH is enabled")
		}
		if c.Admin.Email == "" || c.Admin.PasswordHash == "" {
			return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD_HASH are required when REPORTS_REQUIRE_AUTH is enabled")
		}
	}

	return nil
}

// AuditEnabled reports whether audit entries are persisted to Postgres
func (c *Config) AuditEnabled() bool {
	return c.Database.URL != ""
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
