/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package db opens the device's local SQLite store and applies schema
// migrations.
package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ayushbirla71/adupApp/internal/models"
)

// Connect opens the SQLite database at path and migrates the schema.
func Connect(path string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := database.AutoMigrate(
		&models.PlayRecord{},
		&models.DeviceEvent{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	// A single writer goroutine owns the store; one connection keeps
	// SQLite away from lock contention.
	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return database, nil
}

// Close releases database resources.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
