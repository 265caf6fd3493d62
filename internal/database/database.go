// Package database opens the backing store and keeps its schema current.
package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/activity"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/team"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open establishes a connection for the configured driver and performs
// schema migrations.
func Open(driver, path, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(path, logger)
	case DriverPostgres:
		return OpenPostgres(dsn, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := initialize(db, logger); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverSQLite), zap.String("path", path))
	}
	return db, nil
}

// OpenPostgres establishes a Postgres connection and performs schema
// migrations.
func OpenPostgres(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := initialize(db, logger); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverPostgres))
	}
	return db, nil
}

// initialize records repair migrations before the full automigration so the
// check-in dedupe runs before the unique index lands on pre-existing data.
func initialize(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&migrationRecord{}); err != nil {
		return err
	}
	if err := applyMigrations(db, logger); err != nil {
		return err
	}
	return db.AutoMigrate(
		&users.Identity{},
		&team.Team{},
		&team.Member{},
		&team.Conference{},
		&activity.TeamActivity{},
		&activity.DailyCheckIn{},
		&posts.Post{},
		&posts.Engagement{},
		&contacts.Contact{},
		&contacts.SessionAttendance{},
	)
}
