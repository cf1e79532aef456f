package cmd

import (
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/user-management/internal"
	userDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/user"
)

// Database bundles the gorm handle used by the store with an sqlx view of
// the same pool for health checks.
type Database struct {
	Gorm *gorm.DB
	SQLX *sqlx.DB
}

func (d *Database) Close() error {
	return d.SQLX.Close()
}

// initDB opens the configured database and applies the pool settings.
func initDB(cfg internal.DatabaseConfig, lg *slog.Logger) (*Database, error) {
	var (
		dialector  gorm.Dialector
		sqlxDriver string
	)
	switch cfg.Driver {
	case internal.DriverSQLite:
		dialector = sqlite.Open(cfg.GetDSN())
		sqlxDriver = "sqlite3"
	default:
		dialector = postgres.Open(cfg.GetDSN())
		sqlxDriver = "pgx"
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(slog.NewLogLogger(lg.Handler(), slog.LevelWarn), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// goose migrations are written for PostgreSQL; the sqlite dev driver
	// builds its schema from the gorm models instead.
	if cfg.Driver == internal.DriverSQLite {
		if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		if err := gdb.AutoMigrate(userDatamodel.Models()...); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}

	return &Database{Gorm: gdb, SQLX: sqlx.NewDb(sqlDB, sqlxDriver)}, nil
}
