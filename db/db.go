// Package db wires the persistent cache's gorm connection, dispatching on
// the DSN scheme exactly the way the teacher's db/sqlite.go does, extended
// with a mysql-prefix branch for a self-hosted shared cache (SPEC_FULL.md
// §4.8.F).
package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oxhq/pytype/models"
)

// Connect establishes the cache database connection and runs migrations,
// dialect chosen by the DSN's scheme (file path -> sqlite, libsql://
// or https:// -> Turso, mysql:// -> a self-hosted shared cache), mirroring
// the teacher's db.Connect(dsn, debug) contract.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	if !isURL(dsn) && !isMySQL(dsn) {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	config := &gorm.Config{}
	if debug {
		config.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	switch {
	case isMySQL(dsn):
		dialector = mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	case isURL(dsn):
		var (
			connector driver.Connector
			err       error
		)
		token := os.Getenv("PYTYPE_LIBSQL_AUTH_TOKEN")
		if token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = sqlite.New(sqlite.Config{
			DriverName: "libsql",
			Conn:       conn,
			DSN:        dsn,
		})
	default:
		dialector = sqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, config)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}

	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("cache migration failed: %w", err)
	}

	return gdb, nil
}

// isURL reports whether dsn addresses a Turso/libsql endpoint.
func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql")
}

// isMySQL reports whether dsn addresses a self-hosted shared mysql cache.
func isMySQL(dsn string) bool {
	return strings.HasPrefix(dsn, "mysql://")
}

// Migrate auto-migrates the cache schema.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.CacheEntry{},
		&models.CacheDependency{},
	)
}
