// Package repository contains the repository layer for the Gateway API
package repository

import (
	"fmt"

	"github.com/stockrhythm/gatewayapi/internal/config"
	"github.com/stockrhythm/gatewayapi/internal/models"
	"github.com/stockrhythm/gatewayapi/pkg/utils/zaplogger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the configured database and returns a GORM database object.
// The sqlite driver serves the default single-process deployment; postgres
// is available for shared deployments.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	zaplogger.Info(config.SingleLine)
	zaplogger.Info("Initializing Database", zaplogger.Fields{"driver": cfg.DBDriver})

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var db *gorm.DB
	var err error
	switch cfg.DBDriver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBDsn), gormConfig)
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DBDsn), gormConfig)
	default:
		return nil, fmt.Errorf("unknown db driver: %s", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", cfg.DBDriver, err)
	}

	zaplogger.Info("  * connected")

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %v", err)
	}

	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	tables := []struct {
		name  string
		model interface{}
	}{
		{models.TokensTableName, &models.TokenModel{}},
		{models.OrdersTableName, &models.OrderModel{}},
		{models.TradesTableName, &models.TradeModel{}},
	}

	zaplogger.Info("  * migrating tables")
	for _, table := range tables {
		err := db.AutoMigrate(table.model)
		if err != nil {
			return fmt.Errorf("failed to auto migrate table: %s, err:%v", table.name, err)
		}
		zaplogger.Info("    - \"" + table.name + "\"")
	}

	return nil
}
