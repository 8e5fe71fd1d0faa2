// backend/pkg/database/postgres.go
package database

import (
	"context"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	DSN string
	// MaxOpenConns caps simultaneous operations against the store.
	MaxOpenConns int
	// Models are migrated on every successful establishment.
	Models []interface{}
}

// PostgresDialer opens gorm over the pgx driver. The returned handle has been
// pinged and migrated, so a dead store fails here instead of on first use.
func PostgresDialer(config Config) Dialer {
	return func(ctx context.Context) (*gorm.DB, error) {
		db, err := gorm.Open(postgres.Open(config.DSN), &gorm.Config{
			Logger:                 logger.Default.LogMode(logger.Warn),
			DisableAutomaticPing:   true,
			SkipDefaultTransaction: true,
			TranslateError:         true,
		})
		if err != nil {
			return nil, err
		}
		return prepare(ctx, db, config)
	}
}

// prepare applies pool limits, verifies the link and migrates. Shared with
// other gorm dialects so tests exercise the same path.
func prepare(ctx context.Context, db *gorm.DB, config Config) (*gorm.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.MaxOpenConns)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if len(config.Models) > 0 {
		if err := db.WithContext(ctx).AutoMigrate(config.Models...); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	log.Printf("Database ready (max open conns: %d)", config.MaxOpenConns)
	return db, nil
}

// GormDialer wraps an already opened dialector, e.g. sqlite in tests.
func GormDialer(dialector gorm.Dialector, config Config) Dialer {
	return func(ctx context.Context) (*gorm.DB, error) {
		db, err := gorm.Open(dialector, &gorm.Config{
			Logger:               logger.Default.LogMode(logger.Silent),
			DisableAutomaticPing: true,
			TranslateError:       true,
		})
		if err != nil {
			return nil, err
		}
		return prepare(ctx, db, config)
	}
}
