// Package sqlite is the SQLite storage backend. The schema is managed by
// embedded golang-migrate migrations applied on Open.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xWizop/incubator-sub002/retry"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a KV backed by a single SQLite table.
type Store struct {
	db    *sql.DB
	retry retry.Config
}

// Open creates the database at path if needed, applies migrations and opens it.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: create database directory: %w", err)
	}
	if err := Migrate(path); err != nil {
		return nil, err
	}

	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, retry: retry.DefaultConfig}, nil
}

// Migrate applies all up migrations to the database at path.
func Migrate(path string) error {
	db, err := open(path)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite: load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	// Closing m also closes db.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: migrate up: %w", err)
	}
	return nil
}

func open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	return db, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	return retry.Run(ctx, s.retry, isBusy, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO wallet_records (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, value)
		return err
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return retry.Run(ctx, s.retry, isBusy, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM wallet_records WHERE key = ?`, key)
		return err
	})
}

func (s *Store) All(ctx context.Context) (map[string]string, error) {
	return retry.Do(ctx, s.retry, isBusy, func(ctx context.Context) (map[string]string, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM wallet_records`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := make(map[string]string)
		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				return nil, err
			}
			out[key] = value
		}
		return out, rows.Err()
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return retry.Run(ctx, s.retry, isBusy, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM wallet_records`)
		return err
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// isBusy reports whether err is SQLite lock contention worth retrying.
func isBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}
