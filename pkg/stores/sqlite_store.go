package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode for file databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path
	if dsn != MemoryPath {
		dsn += "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// SaveExploration stores an exploration and its configurations in one
// transaction.
func (s *SQLiteStore) SaveExploration(ctx context.Context, exp *Exploration, rows []ConfigurationRow) error {
	params, err := json.Marshal(nonNil(exp.Params))
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	var warnings *string
	if len(exp.Warnings) > 0 {
		data, err := json.Marshal(exp.Warnings)
		if err != nil {
			return fmt.Errorf("failed to encode warnings: %w", err)
		}
		w := string(data)
		warnings = &w
	}
	stats := exp.Stats
	if stats == "" {
		stats = "{}"
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now()
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO explorations (id, component, strategy, status, params, stats, warnings, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		exp.ID,
		exp.Component,
		exp.Strategy,
		exp.Status,
		string(params),
		stats,
		warnings,
		exp.StartedAt.UTC(),
		utcPtr(exp.CompletedAt),
		exp.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create exploration: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO configurations (exploration_id, ordinal, key, "values")
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare configuration insert: %w", err)
	}
	defer stmt.Close()

	for i := range rows {
		if len(rows[i].Values) != len(exp.Params) {
			return fmt.Errorf("configuration %d has %d values, want %d", rows[i].Ordinal, len(rows[i].Values), len(exp.Params))
		}
		values, err := json.Marshal(rows[i].Values)
		if err != nil {
			return fmt.Errorf("failed to encode configuration %d: %w", rows[i].Ordinal, err)
		}
		if _, err := stmt.ExecContext(ctx, exp.ID, rows[i].Ordinal, rows[i].Key, string(values)); err != nil {
			return fmt.Errorf("failed to insert configuration %d: %w", rows[i].Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit exploration: %w", err)
	}
	exp.Count = len(rows)
	return nil
}

const explorationColumns = `
	e.id, e.component, e.strategy, e.status, e.params, e.stats, e.warnings,
	e.started_at, e.completed_at, e.created_at,
	(SELECT COUNT(*) FROM configurations c WHERE c.exploration_id = e.id)
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExploration(row rowScanner) (*Exploration, error) {
	exp := &Exploration{}
	var params string
	var warnings *string
	err := row.Scan(
		&exp.ID,
		&exp.Component,
		&exp.Strategy,
		&exp.Status,
		&params,
		&exp.Stats,
		&warnings,
		&exp.StartedAt,
		&exp.CompletedAt,
		&exp.CreatedAt,
		&exp.Count,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &exp.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params of %s: %w", exp.ID, err)
	}
	if warnings != nil {
		if err := json.Unmarshal([]byte(*warnings), &exp.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings of %s: %w", exp.ID, err)
		}
	}
	return exp, nil
}

// GetExploration retrieves an exploration by ID
func (s *SQLiteStore) GetExploration(ctx context.Context, id string) (*Exploration, error) {
	query := `SELECT ` + explorationColumns + ` FROM explorations e WHERE e.id = ?`

	exp, err := scanExploration(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exploration %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exploration: %w", err)
	}
	return exp, nil
}

// ResolveID expands a unique ID prefix to the full exploration ID.
func (s *SQLiteStore) ResolveID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("exploration id is required")
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM explorations WHERE id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`, escaped+"%")
	if err != nil {
		return "", fmt.Errorf("failed to resolve exploration id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan exploration id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating exploration ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("exploration %s: %w", prefix, ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("exploration id prefix %s is ambiguous", prefix)
	}
}

// ListExplorations lists explorations, newest first.
func (s *SQLiteStore) ListExplorations(ctx context.Context, filter ExplorationFilter) ([]*Exploration, error) {
	query := `SELECT ` + explorationColumns + ` FROM explorations e`
	var args []any
	if filter.Component != "" {
		query += ` WHERE e.component = ?`
		args = append(args, filter.Component)
	}
	query += ` ORDER BY e.started_at DESC, e.id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list explorations: %w", err)
	}
	defer rows.Close()

	explorations := []*Exploration{}
	for rows.Next() {
		exp, err := scanExploration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exploration: %w", err)
		}
		explorations = append(explorations, exp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating explorations: %w", err)
	}

	return explorations, nil
}

// ListConfigurations lists the configurations of an exploration in ordinal
// order. A non-positive limit returns all of them.
func (s *SQLiteStore) ListConfigurations(ctx context.Context, explorationID string, limit, offset int) ([]*ConfigurationRow, error) {
	query := `
		SELECT exploration_id, ordinal, key, "values"
		FROM configurations
		WHERE exploration_id = ?
		ORDER BY ordinal ASC
	`
	args := []any{explorationID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()

	configs := []*ConfigurationRow{}
	for rows.Next() {
		row := &ConfigurationRow{}
		var values string
		if err := rows.Scan(&row.ExplorationID, &row.Ordinal, &row.Key, &values); err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		if err := json.Unmarshal([]byte(values), &row.Values); err != nil {
			return nil, fmt.Errorf("failed to decode configuration %d: %w", row.Ordinal, err)
		}
		configs = append(configs, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating configurations: %w", err)
	}

	return configs, nil
}

// DeleteExploration deletes an exploration and, by cascade, its
// configurations.
func (s *SQLiteStore) DeleteExploration(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM explorations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete exploration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("exploration %s: %w", id, ErrNotFound)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
