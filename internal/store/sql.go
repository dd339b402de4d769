package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strd/internal/models"
	"strings"
	"time"
)

type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func OpenSQLStore(driver, dsn string) (*SQLStore, error) {
	dialect, err := NewDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := dialect.ConfigureConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	s, err := NewSQLStore(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open connection and creates the table if needed.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if _, err := db.Exec(dialect.CreateTableQuery()); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", tableName, err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := s.dialect.Rebind(`SELECT store_value FROM ` + tableName + ` WHERE store_key = ?`)
	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, unavailable("get", key, err)
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.dialect.UpsertQuery(), key, value, time.Now().UnixNano())
	if err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) (bool, error) {
	query := s.dialect.Rebind(`DELETE FROM ` + tableName + ` WHERE store_key = ?`)
	res, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return false, unavailable("delete", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("delete", key, err)
	}
	return n > 0, nil
}

func (s *SQLStore) List(ctx context.Context, prefix string) ([]string, error) {
	query := s.dialect.Rebind(`SELECT store_key FROM ` + tableName + ` WHERE SUBSTR(store_key, 1, ?) = ?`)
	rows, err := s.db.QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return nil, unavailable("list", prefix, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, unavailable("list", prefix, err)
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
