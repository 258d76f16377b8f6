package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"edupro/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// sqliteDriverName is go-sqlite3 with go_lower registered on every
// connection. SQLite's own LOWER only folds ASCII.
const sqliteDriverName = "sqlite3_edupro"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("go_lower", strings.ToLower, true)
		},
	})
}

// Open connects to the configured content store and makes sure the schema
// exists.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err = sql.Open(sqliteDriverName, sqliteDSN(cfg.DBPath))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// One writer at a time; every statement of a transaction has to go
		// through the transaction itself.
		db.SetMaxOpenConns(1)
	case config.DriverPostgres:
		db, err = sql.Open("pgx", cfg.DBConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxIdleTime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := EnsureSchema(ctx, db, cfg.DBDriver); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info().Str("driver", cfg.DBDriver).Msg("Database connection successful")
	return db, nil
}

func sqliteDSN(path string) string {
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	return "file:" + path + "?" + params.Encode()
}
