package database

import (
	"path/filepath"
	"testing"

	"store-pos/internal/config"
	"store-pos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMigratesSQLite(t *testing.T) {
	prev := DB
	t.Cleanup(func() { DB = prev })

	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseDSN:    "file:" + filepath.Join(t.TempDir(), "pos.db") + "?_foreign_keys=on",
	}
	require.NoError(t, Init(cfg))
	require.NotNil(t, DB)

	assert.True(t, DB.Migrator().HasTable(&models.Product{}))
	assert.True(t, DB.Migrator().HasTable(&models.AuditLog{}))

	sqlDB, err := DB.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Close())
}

func TestInitReturnsErrorForUnknownDriver(t *testing.T) {
	prev := DB
	t.Cleanup(func() { DB = prev })
	DB = nil

	err := Init(&config.Config{DatabaseDriver: "oracle"})
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
	assert.Nil(t, DB, "left untouched on failure")
}
