package gormdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteDriverName is the go-sqlite3 driver registered with per-connection
// pragmas applied.
const sqliteDriverName = "sqlite3_detections"

var registerSQLite sync.Once

// sqlitePragmas run on every new connection. WAL and busy timeout are set
// through the DSN instead.
var sqlitePragmas = []string{
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
}

func registerSQLiteDriver() {
	registerSQLite.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				for _, pragma := range sqlitePragmas {
					if _, err := conn.Exec(pragma, nil); err != nil {
						return fmt.Errorf("%s: %w", pragma, err)
					}
				}
				return nil
			},
		})
	})
}

// sqliteDialector opens path in WAL mode, creating its directory if needed.
func sqliteDialector(path string) (gorm.Dialector, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	registerSQLiteDriver()
	return sqlite.New(sqlite.Config{
		DriverName: sqliteDriverName,
		DSN:        path + "?_journal_mode=WAL&_busy_timeout=5000",
	}), nil
}
