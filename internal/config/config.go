package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
)

const defaultSQLiteDSN = "file:store-pos.db?_foreign_keys=on"

// Config drives the reference backend (cmd/server).
type Config struct {
	HTTPPort        string
	DatabaseDriver  string // "postgres" or "sqlite"
	DatabaseDSN     string
	CORSOrigins     string
	LogMode         string // "production" or "development"
	ShutdownTimeout time.Duration
	Store           StoreInfo
	// Warnings lists the defaults Load fell back to. They are logged once the
	// logger exists.
	Warnings []string
}

// StoreInfo is printed on every receipt header.
type StoreInfo struct {
	Name    string
	Address string
	Phone   string
}

// TerminalConfig drives the operator terminal (cmd/terminal).
type TerminalConfig struct {
	APIURL            string
	RequestTimeout    time.Duration
	SearchDebounce    time.Duration
	LowStockThreshold int
	StockCheckSpec    string
	LogMode           string
	LogFile           string
	Store             StoreInfo
	Warnings          []string
}

func Load() *Config {
	var w warnings
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "5000"),
		DatabaseDriver:  getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:     getEnv("DATABASE_DSN", ""),
		CORSOrigins:     getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogMode:         getEnv("LOG_MODE", "development"),
		ShutdownTimeout: w.getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Store:           loadStore(),
	}

	switch cfg.DatabaseDriver {
	case "postgres":
		if cfg.DatabaseDSN == "" {
			cfg.DatabaseDSN = "host=localhost user=postgres password=postgres dbname=store_pos port=5432 sslmode=disable"
			w.add("DATABASE_DSN is not set, using the local postgres default")
		}
	case "sqlite":
		if cfg.DatabaseDSN == "" {
			cfg.DatabaseDSN = defaultSQLiteDSN
		}
	default:
		w.add("unknown DATABASE_DRIVER %q, falling back to sqlite", cfg.DatabaseDriver)
		cfg.DatabaseDriver = "sqlite"
		if cfg.DatabaseDSN == "" {
			cfg.DatabaseDSN = defaultSQLiteDSN
		}
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		w.add("CORS_ALLOWED_ORIGINS uses the default value, set your own origin in production")
	}

	cfg.Warnings = w
	return cfg
}

func LoadTerminal() *TerminalConfig {
	var w warnings
	cfg := &TerminalConfig{
		APIURL:            getEnv("POS_API_URL", "http://localhost:5000/api"),
		RequestTimeout:    w.getDuration("POS_REQUEST_TIMEOUT", 5*time.Second),
		SearchDebounce:    w.getDuration("POS_SEARCH_DEBOUNCE", 300*time.Millisecond),
		LowStockThreshold: w.getInt("POS_LOW_STOCK_THRESHOLD", 10),
		StockCheckSpec:    getEnv("POS_STOCK_CHECK_SPEC", "@every 30s"),
		LogMode:           getEnv("LOG_MODE", "development"),
		LogFile:           getEnv("POS_LOG_FILE", "store-pos-terminal.log"),
		Store:             loadStore(),
	}
	cfg.Warnings = w
	return cfg
}

func loadStore() StoreInfo {
	return StoreInfo{
		Name:    getEnv("STORE_NAME", "Jagath Store"),
		Address: getEnv("STORE_ADDRESS", "Pasal Mawatha, Okkampitiya"),
		Phone:   getEnv("STORE_PHONE", "0713364743"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type warnings []string

func (w *warnings) add(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}

func (w *warnings) getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
		w.add("invalid int value for %s: %s, using default: %d", key, v, def)
	}
	return def
}

func (w *warnings) getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := cast.ToDurationE(v); err == nil && d > 0 {
			return d
		}
		w.add("invalid duration value for %s: %s, using default: %s", key, v, def)
	}
	return def
}
