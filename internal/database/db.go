package database

import (
	"fmt"

	"store-pos/internal/config"
	"store-pos/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the configured database into DB and migrates the schema.
func Init(cfg *config.Config) error {
	db, err := Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logger.Warn)
	if err != nil {
		return fmt.Errorf("could not connect to the database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	DB = db

	zap.L().Info("database ready, migration complete", zap.String("driver", cfg.DatabaseDriver))
	return nil
}

// Open picks the gorm dialector for driver.
func Open(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Product{},
		&models.Bill{},
		&models.BillItem{},
		&models.DailySummary{},
		&models.DailySummaryItem{},
		&models.MonthlySummary{},
		&models.MonthlySummaryItem{},
		&models.AuditLog{},
	)
}
