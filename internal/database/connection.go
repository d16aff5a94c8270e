// connection.go
//
// A versioned content and publish-state engine for minisites
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of minisitedb.
// minisitedb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// minisitedb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with minisitedb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package database

import (
	"fmt"
	"time"

	"github.com/localnerve/minisitedb/internal/config"
	"github.com/localnerve/minisitedb/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a database connection based on the configured DB_TYPE
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DBType {
	case "mysql", "mariadb":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBAppUser,
			cfg.DBAppPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBAppDatabase,
		)
		dialector = mysql.Open(dsn)

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost,
			cfg.DBAppUser,
			cfg.DBAppPassword,
			cfg.DBAppDatabase,
			cfg.DBPort,
		)
		dialector = postgres.Open(dsn)

	case "sqlite":
		// For SQLite, DBAppDatabase is the file path
		dialector = sqlite.Open(cfg.DBAppDatabase)

	case "sqlserver", "mssql":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			cfg.DBAppUser,
			cfg.DBAppPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBAppDatabase,
		)
		dialector = sqlserver.Open(dsn)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}

	db, err := Open(dialector, cfg.DBLogLevel, cfg.DBAppConnectionLimit)
	if err != nil {
		return nil, err
	}

	log.Info().Str("db_type", cfg.DBType).Str("database", cfg.DBAppDatabase).Msg("Connected to database")
	return db, nil
}

// Open opens a dialector with the shared GORM settings. Driver errors are
// translated so unique violations surface as gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, logLevel string, maxConns int) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewLogger(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB for connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
		idle := maxConns / 2
		if idle < 1 {
			idle = 1
		}
		sqlDB.SetMaxIdleConns(idle)
	}

	return db, nil
}

// NewLogger routes GORM's SQL log through zerolog at the given level name
func NewLogger(level string) logger.Interface {
	return logger.New(gormWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  parseLogLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Debug().Str("component", "gorm").Msgf(format, args...)
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// AutoMigrate runs automatic migrations for all models and adds the spatial
// location columns GORM does not manage.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Minisite{}, &models.Version{}); err != nil {
		return err
	}

	spatial := SpatialFor(db)
	for _, table := range []string{models.Minisite{}.TableName(), models.Version{}.TableName()} {
		if db.Migrator().HasColumn(table, LocationColumn) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD %s %s", table, LocationColumn, spatial.ColumnType())
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to add %s to %s: %w", LocationColumn, table, err)
		}
	}
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
