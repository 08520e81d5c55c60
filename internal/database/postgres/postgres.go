// Package postgres implements the URL repository on PostgreSQL. Unlike
// the spreadsheet backend it is index-capable: short codes are resolved
// through a unique index and every mutation is a single atomic
// statement, so none of the sheet backend's documented races apply.
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	pgErr, ok := err.(*pgconn.PgError)
	return ok && pgErr.SQLState() == uniqueViolationErrCode
}

// PoolSettings bound the connection pool. Zero fields leave the
// database/sql defaults untouched.
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type ConnOption func(*PoolSettings)

func WithMaxOpenConns(n int) ConnOption {
	return func(s *PoolSettings) {
		s.MaxOpenConns = n
	}
}

func WithMaxIdleConns(n int) ConnOption {
	return func(s *PoolSettings) {
		s.MaxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) ConnOption {
	return func(s *PoolSettings) {
		s.ConnMaxLifetime = d
	}
}

func WithConnMaxIdleTime(d time.Duration) ConnOption {
	return func(s *PoolSettings) {
		s.ConnMaxIdleTime = d
	}
}

// New connects to the database identified by dsn and applies the given
// pool settings.
func New(dsn string, opts ...ConnOption) (*sqlx.DB, error) {
	const op = "database.postgres.New"

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	var settings PoolSettings
	for _, opt := range opts {
		opt(&settings)
	}
	settings.apply(db)

	return db, nil
}

func (s PoolSettings) apply(db *sqlx.DB) {
	if s.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.MaxOpenConns)
	}
	if s.MaxIdleConns > 0 {
		db.SetMaxIdleConns(s.MaxIdleConns)
	}
	if s.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.ConnMaxLifetime)
	}
	if s.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(s.ConnMaxIdleTime)
	}
}

// RunMigrations brings the urls schema up to date from the migration
// files at path. An already current schema is not an error.
func RunMigrations(path string, dsn string) error {
	const op = "database.postgres.RunMigrations"

	m, err := migrate.New(path, dsn)
	if err != nil {
		return fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return nil
}
