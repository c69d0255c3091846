package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"bakery_ops_backend/internal/config"
	"bakery_ops_backend/pkg/utils"
)

// InitDB opens and verifies the connection pool described by cfg and, when
// enabled, applies the embedded schema for the dialect.
func InitDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(dialect.DriverName(), cfg.ConnectionString())
	if err != nil {
		return nil, "", fmt.Errorf("error opening database: %w", err)
	}

	if dialect == SQLite {
		// One writer at a time; readers share the same connection.
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("error connecting to database: %w", err)
	}
	utils.LogInfo("Successfully connected to the database", map[string]interface{}{"driver": string(dialect)})

	if cfg.AutoMigrate {
		if err := ApplySchema(ctx, db, dialect); err != nil {
			db.Close()
			return nil, "", err
		}
	}

	return db, dialect, nil
}
