package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"RSL_APP_NAME":                   os.Getenv("RSL_APP_NAME"),
		"RSL_APP_ENV":                    os.Getenv("RSL_APP_ENV"),
		"RSL_APP_PORT":                   os.Getenv("RSL_APP_PORT"),
		"RSL_DATABASE_HOST":              os.Getenv("RSL_DATABASE_HOST"),
		"RSL_DATABASE_PORT":              os.Getenv("RSL_DATABASE_PORT"),
		"RSL_DATABASE_USER":              os.Getenv("RSL_DATABASE_USER"),
		"RSL_DATABASE_PASSWORD":          os.Getenv("RSL_DATABASE_PASSWORD"),
		"RSL_DATABASE_SSLMODE":           os.Getenv("RSL_DATABASE_SSLMODE"),
		"RSL_DATABASE_MAX_OPEN_CONNS":    os.Getenv("RSL_DATABASE_MAX_OPEN_CONNS"),
		"RSL_DATABASE_MAX_IDLE_CONNS":    os.Getenv("RSL_DATABASE_MAX_IDLE_CONNS"),
		"RSL_BILLING_DUE_DAYS":           os.Getenv("RSL_BILLING_DUE_DAYS"),
		"RSL_BILLING_OVERDUE_BATCH_SIZE": os.Getenv("RSL_BILLING_OVERDUE_BATCH_SIZE"),
		"RSL_JWT_SECRET":                 os.Getenv("RSL_JWT_SECRET"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "reseller-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "reseller", cfg.Database.DBName)
		assert.Equal(t, 7, cfg.Billing.DueDays)
		assert.Equal(t, 100, cfg.Billing.OverdueBatchSize)
		assert.Equal(t, 4, cfg.Billing.BatchWorkers)
		assert.Equal(t, 10*time.Minute, cfg.Billing.PlanCacheTTL)
	})

	t.Run("loads values from environment variables with RSL prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("RSL_APP_NAME", "test-app")
		os.Setenv("RSL_DATABASE_HOST", "testdb.local")
		os.Setenv("RSL_DATABASE_PORT", "5433")
		os.Setenv("RSL_BILLING_DUE_DAYS", "14")
		os.Setenv("RSL_BILLING_OVERDUE_BATCH_SIZE", "250")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 14, cfg.Billing.DueDays)
		assert.Equal(t, 250, cfg.Billing.OverdueBatchSize)
	})

	t.Run("rejects idle connections exceeding open connections", func(t *testing.T) {
		clearEnv()
		os.Setenv("RSL_DATABASE_MAX_OPEN_CONNS", "5")
		os.Setenv("RSL_DATABASE_MAX_IDLE_CONNS", "10")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires a strong jwt secret", func(t *testing.T) {
		clearEnv()
		os.Setenv("RSL_APP_ENV", "production")
		os.Setenv("RSL_DATABASE_PASSWORD", "secret")
		os.Setenv("RSL_DATABASE_SSLMODE", "require")
		os.Setenv("RSL_JWT_SECRET", "short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret")
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.local",
		Port:     5432,
		User:     "app",
		Password: "p@ss/word",
		DBName:   "reseller",
		SSLMode:  "require",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.local:5432")
	assert.Contains(t, dsn, "sslmode=require")
	assert.NotContains(t, dsn, "p@ss/word") // escaped
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", r.Addr())
}
