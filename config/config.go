// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kitchencost"
)

const (
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
)

type Config struct {
	Store          string
	SQLiteDriver   string
	SQLitePath     string
	MySQLDSN       string
	RedisAddr      string // empty: in-process item locks
	LockTTL        time.Duration
	LogLevel       string
	PricingFormula kitchencost.PricingFormula
}

// Load reads .env files when present (missing files are not an error) and
// then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	cfg := &Config{
		Store:        strings.ToLower(getEnv("KITCHENCOST_STORE", StoreSQLite)),
		SQLiteDriver: getEnv("KITCHENCOST_SQLITE_DRIVER", kitchencost.DriverSQLite3),
		SQLitePath:   getEnv("KITCHENCOST_SQLITE_PATH", "kitchencost.db"),
		MySQLDSN:     os.Getenv("KITCHENCOST_MYSQL_DSN"),
		RedisAddr:    os.Getenv("KITCHENCOST_REDIS_ADDR"),
		LogLevel:     getEnv("KITCHENCOST_LOG_LEVEL", "info"),
	}

	ttl, err := time.ParseDuration(getEnv("KITCHENCOST_LOCK_TTL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("KITCHENCOST_LOCK_TTL: %w", err)
	}
	cfg.LockTTL = ttl

	formula, err := kitchencost.ParsePricingFormula(os.Getenv("KITCHENCOST_PRICING_FORMULA"))
	if err != nil {
		return nil, fmt.Errorf("KITCHENCOST_PRICING_FORMULA: %w", err)
	}
	cfg.PricingFormula = formula

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.SQLiteDriver != kitchencost.DriverSQLite3 && c.SQLiteDriver != kitchencost.DriverSQLite {
			return fmt.Errorf("KITCHENCOST_SQLITE_DRIVER must be %q or %q", kitchencost.DriverSQLite3, kitchencost.DriverSQLite)
		}
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return errors.New("KITCHENCOST_MYSQL_DSN is required for the mysql store")
		}
	default:
		return fmt.Errorf("unknown KITCHENCOST_STORE %q", c.Store)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
