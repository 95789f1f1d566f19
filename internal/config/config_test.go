package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "migrations", cfg.Server.MigrationsDir)
	assert.True(t, cfg.Loyalty.EarnRate.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, cfg.Loyalty.PointValue.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 100, cfg.RateLimit.Requests)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LOYALTY_EARN_RATE", "0.1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example, https://admin.example")
	t.Setenv("PAYMENT_SUCCESS_URL", "https://shop.example/thanks")

	cfg := Load()

	assert.True(t, cfg.Loyalty.EarnRate.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "https://shop.example/thanks", cfg.Payment.SuccessURL)
}

func TestDecimalOr_FallsBackOnGarbage(t *testing.T) {
	assert.True(t, decimalOr("abc", "0.05").Equal(decimal.RequireFromString("0.05")))
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "store", Schema: "public"}
	assert.Equal(t, "postgres://u:p@db:5432/store?sslmode=disable&search_path=public", c.DSN())
}
