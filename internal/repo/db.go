// Package repo implements the data persistence layer for herd domain
// entities, backed by GORM. This file contains database bootstrapping
// helpers for SQLite (pure Go driver) and schema migrations, plus the
// error sentinels shared by every repository in the package.
//
// All repository functions are context-aware and accept a *gorm.DB
// handle, making them safe for use within transactions or
// connection-scoped operations. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query
// composition.
//
// Error semantics:
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Conditional (version-checked) updates that match no row return
//     ErrVersionConflict: the entity was modified concurrently since it
//     was read, or it no longer exists.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/hatogrande/go-herd-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrVersionConflict is returned by version-checked updates when the
// stored version no longer matches the one the caller read. Callers
// surface this as a retryable conflict.
var ErrVersionConflict = errors.New("version conflict: entity was modified concurrently")

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Query tracing; metrics are collected separately.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for every herd entity.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Animal{},
		&domain.AnimalStatus{},
		&domain.AnimalEvent{},
		&domain.AnimalParentage{},
		&domain.Lactation{},
		&domain.SireCatalog{},
		&domain.SemenInventory{},
		&domain.Insemination{},
		&domain.Membership{},
	)
}
