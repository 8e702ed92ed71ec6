package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// OpenDB opens a bun database for the given driver. Accepted drivers are
// postgres (lib/pq) and sqlite3 (mattn/go-sqlite3); "pg" and "sqlite" are
// aliases.
func OpenDB(driver string, dsn string) (*bun.DB, error) {
	driver = NormalizeDriver(driver)
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	return bun.NewDB(sqlDB, dialect), nil
}

func NormalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pg":
		return DriverPostgres
	case "sqlite", "sqlite3":
		return DriverSQLite
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}

// Dialect returns the bun dialect for a driver name.
func Dialect(driver string) (schema.Dialect, error) {
	return dialectFor(NormalizeDriver(driver))
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case DriverPostgres:
		return pgdialect.New(), nil
	case DriverSQLite:
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
