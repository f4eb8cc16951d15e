// Package servertest runs the reference backend on a loopback port over a
// throwaway SQLite database.
package servertest

import (
	"fmt"
	"net"
	"path/filepath"
	"testing"

	"store-pos/internal/config"
	"store-pos/internal/database"
	"store-pos/internal/models"
	"store-pos/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// OpenDB points database.DB at a fresh SQLite file under t.TempDir().
func OpenDB(t *testing.T) {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "pos.db") + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := database.Open("sqlite", dsn, logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		_ = sqlDB.Close()
	})
}

// NewApp opens a database and returns the app without listening, for app.Test.
func NewApp(t *testing.T) *fiber.App {
	t.Helper()
	OpenDB(t)
	return server.New(&config.Config{CORSOrigins: "*"})
}

// Start serves the app on 127.0.0.1 and returns the /api base URL.
func Start(t *testing.T) string {
	t.Helper()
	app := NewApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return fmt.Sprintf("http://%s/api", ln.Addr().String())
}

// Product is a shorthand for seeding.
func Product(id, name string, stock int, buying, selling string) models.Product {
	return models.Product{
		ProductID:    id,
		Name:         name,
		Stock:        stock,
		BuyingPrice:  decimal.RequireFromString(buying),
		SellingPrice: decimal.RequireFromString(selling),
	}
}

func Seed(t *testing.T, products ...models.Product) {
	t.Helper()
	for i := range products {
		require.NoError(t, database.DB.Create(&products[i]).Error)
	}
}

// SetStock changes stock behind the register's back.
func SetStock(t *testing.T, id string, stock int) {
	t.Helper()
	require.NoError(t, database.DB.Model(&models.Product{}).
		Where("product_id = ?", id).
		UpdateColumn("stock", stock).Error)
}
