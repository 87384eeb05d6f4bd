package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DefaultPostgresTable is the table credentials are stored in.
const DefaultPostgresTable = "sentinel_credentials"

// PostgresOptions configures a Postgres store.
type PostgresOptions struct {
	DB      *sql.DB
	Table   string
	Key     string
	Timeout time.Duration
}

// PostgresStore persists the token in PostgreSQL, for kiosk and shared
// server-side deployments where local files do not survive.
type PostgresStore struct {
	DB      *sql.DB
	Table   string
	Key     string
	Timeout time.Duration
}

// NewPostgresStore builds a Postgres-backed store.
func NewPostgresStore(options PostgresOptions) (*PostgresStore, error) {
	if options.DB == nil {
		return nil, errors.New("postgres db is required")
	}
	table := strings.TrimSpace(options.Table)
	if table == "" {
		table = DefaultPostgresTable
	}
	if !validPostgresTable(table) {
		return nil, fmt.Errorf("invalid postgres table name: %s", table)
	}
	key := strings.TrimSpace(options.Key)
	if key == "" {
		key = DefaultKey
	}

	return &PostgresStore{
		DB:      options.DB,
		Table:   table,
		Key:     key,
		Timeout: options.Timeout,
	}, nil
}

// EnsureTable creates the credential table if it does not exist.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, s.Table)
	_, err := s.DB.ExecContext(ctx, createTable)
	return err
}

// Get returns the stored token.
func (s *PostgresStore) Get(ctx context.Context) (string, bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var token string
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", s.Table)
	err := s.DB.QueryRowContext(ctx, query, s.Key).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// Set stores the token.
func (s *PostgresStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, s.Table)
	_, err := s.DB.ExecContext(ctx, query, s.Key, token)
	return err
}

// Clear removes the stored token.
func (s *PostgresStore) Clear(ctx context.Context) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE key = $1", s.Table)
	_, err := s.DB.ExecContext(ctx, query, s.Key)
	return err
}

func (s *PostgresStore) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, s.Timeout)
}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)?$`)

func validPostgresTable(name string) bool {
	return tableNamePattern.MatchString(name)
}
