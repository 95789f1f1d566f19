package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Loyalty   LoyaltyConfig
	Payment   PaymentConfig
	Delivery  DeliveryConfig
}

type ServerConfig struct {
	Port          string
	Env           string
	MigrationsDir string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Database +
		"?sslmode=disable&search_path=" + c.Schema
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// LoyaltyConfig controls points accrual and redemption.
type LoyaltyConfig struct {
	EarnRate   decimal.Decimal // points per currency unit spent
	PointValue decimal.Decimal // currency value of one point at redemption
}

// PaymentConfig holds the URLs handed to payment providers.
type PaymentConfig struct {
	FrontendURL string
	SuccessURL  string
	FailURL     string
	WebhookURL  string

	// WebhookSecret, when set, must be sent by offline confirmations in X-Webhook-Secret.
	WebhookSecret string
}

type DeliveryConfig struct {
	OriginPostalCode string
	PickupAddress    string
}

func Load() *Config {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("MIGRATIONS_DIR", "migrations")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_ENABLED", true)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("LOYALTY_EARN_RATE", "0.05")
	viper.SetDefault("LOYALTY_POINT_VALUE", "1")
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")
	viper.SetDefault("DELIVERY_ORIGIN_POSTAL_CODE", "101000")

	frontend := strings.TrimRight(viper.GetString("FRONTEND_URL"), "/")
	viper.SetDefault("PAYMENT_SUCCESS_URL", frontend+"/checkout/success")
	viper.SetDefault("PAYMENT_FAIL_URL", frontend+"/checkout/failed")
	viper.SetDefault("PAYMENT_WEBHOOK_URL", "http://localhost:"+viper.GetString("SERVER_PORT")+"/api/v1/payments/offline/webhook")

	return &Config{
		Server: ServerConfig{
			Port:          viper.GetString("SERVER_PORT"),
			Env:           viper.GetString("SERVER_ENV"),
			MigrationsDir: viper.GetString("MIGRATIONS_DIR"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			Enabled:  viper.GetBool("REDIS_ENABLED"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		RateLimit: RateLimitConfig{
			Requests:      viper.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Loyalty: LoyaltyConfig{
			EarnRate:   decimalOr(viper.GetString("LOYALTY_EARN_RATE"), "0.05"),
			PointValue: decimalOr(viper.GetString("LOYALTY_POINT_VALUE"), "1"),
		},
		Payment: PaymentConfig{
			FrontendURL:   frontend,
			SuccessURL:    viper.GetString("PAYMENT_SUCCESS_URL"),
			FailURL:       viper.GetString("PAYMENT_FAIL_URL"),
			WebhookURL:    viper.GetString("PAYMENT_WEBHOOK_URL"),
			WebhookSecret: viper.GetString("PAYMENT_WEBHOOK_SECRET"),
		},
		Delivery: DeliveryConfig{
			OriginPostalCode: viper.GetString("DELIVERY_ORIGIN_POSTAL_CODE"),
			PickupAddress:    viper.GetString("DELIVERY_PICKUP_ADDRESS"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decimalOr(raw, fallback string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("Warning: invalid decimal %q, using %s", raw, fallback)
		return decimal.RequireFromString(fallback)
	}
	return d
}
