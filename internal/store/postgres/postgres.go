// Package postgres implements the store.Store interface backed by
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/settings"
	"github.com/groblegark/pixelrelay/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the relay database, configures the pool, runs
// pending migrations, and seeds default settings on first run.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.seedDefaults(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed default settings: %w", err)
	}
	return s, nil
}

// NewFromDB wraps an existing connection without migrating or seeding
// (used by tests).
func NewFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// seedDefaults inserts the first-run settings row if none exists.
func (s *PostgresStore) seedDefaults(ctx context.Context) error {
	data, err := json.Marshal(settings.Defaults())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, data, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO NOTHING`, data)
	return err
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetSettings(ctx context.Context) (*settings.Settings, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}

	var out settings.Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, set *settings.Settings) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, data, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, data)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, e *diaglog.Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO capi_logs (event_name, event_data, response_data, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.EventName, e.EventData, nullString(e.ResponseData), e.Status, created,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, limit int) ([]*diaglog.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_name, event_data, COALESCE(response_data, ''), status, created_at
		FROM capi_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) ListLogsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*diaglog.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_name, event_data, COALESCE(response_data, ''), status, created_at
		FROM capi_logs WHERE created_at < $1 ORDER BY id ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs before %s: %w", cutoff, err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM capi_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete logs before %s: %w", cutoff, err)
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]*diaglog.Entry, error) {
	defer rows.Close()

	var entries []*diaglog.Entry
	for rows.Next() {
		var e diaglog.Entry
		if err := rows.Scan(&e.ID, &e.EventName, &e.EventData, &e.ResponseData, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
