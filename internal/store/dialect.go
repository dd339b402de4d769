package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const tableName = "strd_kv"

// Dialect isolates the SQL differences between the supported engines.
type Dialect interface {
	DriverName() string
	Rebind(query string) string
	CreateTableQuery() string
	UpsertQuery() string
	ConfigureConnection(db *sql.DB) error
}

func NewDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return &SQLiteDialect{}, nil
	case "postgres", "postgresql":
		return &PostgresDialect{}, nil
	case "mysql":
		return &MySQLDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported sql driver: %s", driver)
}

type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string         { return "sqlite3" }
func (d *SQLiteDialect) Rebind(query string) string { return query }

func (d *SQLiteDialect) CreateTableQuery() string {
	return `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		store_key TEXT PRIMARY KEY,
		store_value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`
}

func (d *SQLiteDialect) UpsertQuery() string {
	return `INSERT INTO ` + tableName + ` (store_key, store_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(store_key) DO UPDATE SET store_value = excluded.store_value, updated_at = excluded.updated_at`
}

func (d *SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Another process holds the same file; WAL plus a busy timeout lets
	// readers and the single writer per key coexist.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return err
	}
	return nil
}

type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

// Rebind rewrites ? placeholders to $n.
func (d *PostgresDialect) Rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *PostgresDialect) CreateTableQuery() string {
	return `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		store_key TEXT PRIMARY KEY,
		store_value BYTEA NOT NULL,
		updated_at BIGINT NOT NULL
	)`
}

func (d *PostgresDialect) UpsertQuery() string {
	return d.Rebind(`INSERT INTO ` + tableName + ` (store_key, store_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (store_key) DO UPDATE SET store_value = EXCLUDED.store_value, updated_at = EXCLUDED.updated_at`)
}

func (d *PostgresDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

type MySQLDialect struct{}

func (d *MySQLDialect) DriverName() string         { return "mysql" }
func (d *MySQLDialect) Rebind(query string) string { return query }

func (d *MySQLDialect) CreateTableQuery() string {
	return `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		store_key VARCHAR(255) NOT NULL PRIMARY KEY,
		store_value LONGBLOB NOT NULL,
		updated_at BIGINT NOT NULL
	)`
}

func (d *MySQLDialect) UpsertQuery() string {
	return `INSERT INTO ` + tableName + ` (store_key, store_value, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE store_value = VALUES(store_value), updated_at = VALUES(updated_at)`
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return nil
}
