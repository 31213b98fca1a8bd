package webdb

// Drivers selectable through ConnParams.DriverName. go-sql-driver/mysql,
// lib/pq ("postgres") and modernc ("sqlite") are registered by internal/core.
import (
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx"
	_ "github.com/mattn/go-sqlite3"    // "sqlite3", the SQLite default
)
