// Package db provides database connection and migration functionality.
package db

import (
	"fmt"
	stdlog "log"
	"os"

	"raffle-guess/internal/config"
	"raffle-guess/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a database connection using the provided configuration.
// It returns a nil DB when no database is configured.
func Open(cfg config.Config) (*gorm.DB, error) {
	if cfg.DBDialect == "" || cfg.DBDsn == "" {
		return nil, nil
	}

	dialector, err := dialectorFor(cfg.DBDialect, cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialector, gormConfig(cfg.Debug))
}

func dialectorFor(dialect, dsn string) (gorm.Dialector, error) {
	switch dialect {
	case config.DatabaseSchemePostgres:
		return postgres.Open(dsn), nil
	case config.DatabaseSchemeMySQL:
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT: %s", dialect)
	}
}

func gormConfig(debug bool) *gorm.Config {
	// Silent unless debugging; errors are returned to callers anyway
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	newLogger := logger.New(
		stdlog.New(os.Stdout, "", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             0,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{Logger: newLogger, TranslateError: true}
}

// AutoMigrate runs database migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(&models.GuessRecord{})
}
