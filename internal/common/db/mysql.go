package db

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// NewMySQL opens a MySQL connection pool.
// DSN format: "user:password@tcp(host:port)/dbname?parseTime=true&loc=Local"
func NewMySQL(cfg *Config) (*SQLDatabase, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return openSQL("mysql", DialectMySQL, cfg)
}
