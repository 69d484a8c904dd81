package database

import (
	"fmt"
	"time"

	"github.com/arrayops/librarian/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the database connection, configures the pool and migrates
// the catalog tables.
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		// WAL mode plus a busy timeout so concurrent worker requests
		// queue instead of failing on the write lock.
		dsn := cfg.DSN + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Unique-key violations must surface as gorm.ErrDuplicatedKey:
		// the catalog relies on them to detect create/create races.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite tolerates only one writer; keep the pool at a single
	// connection to avoid lock contention between workers.
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return db, nil
}

// autoMigrate creates or updates the catalog tables.
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Observation{},
		&Store{},
		&File{},
		&FileInstance{},
		&FileEvent{},
	)
}
