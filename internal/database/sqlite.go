package database

import (
	"fmt"

	"github.com/MarvelMathesh/trackflow/internal/activity"
	"github.com/MarvelMathesh/trackflow/internal/leads"
	"github.com/MarvelMathesh/trackflow/internal/orders"
	"github.com/MarvelMathesh/trackflow/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite opens the database at path and creates any missing tables.
// Existing tables are never altered beyond what AutoMigrate adds.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(db, &leads.Lead{}, &orders.Order{}, &activity.Entry{}, &users.Identity{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// migrate creates missing tables for models and closes db when that fails.
func migrate(db *gorm.DB, models ...any) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(models...); err != nil {
		_ = sqlDB.Close()
		return err
	}
	return nil
}
