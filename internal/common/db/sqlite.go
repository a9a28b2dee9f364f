package db

import (
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// NewSQLite opens a SQLite database (pure Go driver).
// DSN examples: "file:classqa.db?_pragma=busy_timeout(5000)", "file:test?mode=memory&cache=shared".
func NewSQLite(cfg *Config) (*SQLDatabase, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.MaxOpenConnections == 0 {
		cfg.MaxOpenConnections = 1
		cfg.MaxIdleConnections = 1
	}
	// An in-memory database lives only as long as its last connection.
	if strings.Contains(cfg.DSN, "mode=memory") {
		cfg.MaxOpenConnections = 1
		cfg.MaxIdleConnections = 1
		cfg.ConnMaxLifetime = -1
		cfg.ConnMaxIdleTime = -1
	}
	return openSQL("sqlite", DialectSQLite, cfg)
}
