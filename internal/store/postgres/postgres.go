// Package postgres implements the store.Store interface backed by PostgreSQL.
// Diagram snapshots and direct relationship records are stored as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
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

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
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

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateElement(ctx context.Context, el *model.WorldElement) error {
	return queryCreateElement(ctx, s.db, el)
}

func (s *PostgresStore) GetElement(ctx context.Context, id string) (*model.WorldElement, error) {
	return queryGetElement(ctx, s.db, id)
}

func (s *PostgresStore) ListElements(ctx context.Context, projectID string, categories ...model.ElementCategory) ([]*model.WorldElement, error) {
	return queryListElements(ctx, s.db, projectID, categories)
}

func (s *PostgresStore) CreateDirectRelationship(ctx context.Context, rec *model.DirectRelationshipRecord) error {
	return queryCreateDirectRelationship(ctx, s.db, rec)
}

func (s *PostgresStore) ListDirectRelationships(ctx context.Context, projectID string) ([]model.DirectRelationshipRecord, error) {
	return queryListDirectRelationships(ctx, s.db, projectID)
}

func (s *PostgresStore) CreateRelationship(ctx context.Context, rel *model.Relationship) error {
	return queryCreateRelationship(ctx, s.db, rel)
}

func (s *PostgresStore) GetRelationship(ctx context.Context, id string) (*model.Relationship, error) {
	return queryGetRelationship(ctx, s.db, id)
}

func (s *PostgresStore) ListRelationships(ctx context.Context, projectID string) ([]*model.Relationship, error) {
	return queryListRelationships(ctx, s.db, projectID)
}

func (s *PostgresStore) SaveRelationship(ctx context.Context, rel *model.Relationship) error {
	return querySaveRelationship(ctx, s.db, rel)
}

func (s *PostgresStore) DeleteRelationship(ctx context.Context, id string) error {
	return queryDeleteRelationship(ctx, s.db, id)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, relationshipID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, relationshipID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateElement(ctx context.Context, el *model.WorldElement) error {
	return queryCreateElement(ctx, s.tx, el)
}

func (s *txStore) GetElement(ctx context.Context, id string) (*model.WorldElement, error) {
	return queryGetElement(ctx, s.tx, id)
}

func (s *txStore) ListElements(ctx context.Context, projectID string, categories ...model.ElementCategory) ([]*model.WorldElement, error) {
	return queryListElements(ctx, s.tx, projectID, categories)
}

func (s *txStore) CreateDirectRelationship(ctx context.Context, rec *model.DirectRelationshipRecord) error {
	return queryCreateDirectRelationship(ctx, s.tx, rec)
}

func (s *txStore) ListDirectRelationships(ctx context.Context, projectID string) ([]model.DirectRelationshipRecord, error) {
	return queryListDirectRelationships(ctx, s.tx, projectID)
}

func (s *txStore) CreateRelationship(ctx context.Context, rel *model.Relationship) error {
	return queryCreateRelationship(ctx, s.tx, rel)
}

func (s *txStore) GetRelationship(ctx context.Context, id string) (*model.Relationship, error) {
	return queryGetRelationship(ctx, s.tx, id)
}

func (s *txStore) ListRelationships(ctx context.Context, projectID string) ([]*model.Relationship, error) {
	return queryListRelationships(ctx, s.tx, projectID)
}

func (s *txStore) SaveRelationship(ctx context.Context, rel *model.Relationship) error {
	return querySaveRelationship(ctx, s.tx, rel)
}

func (s *txStore) DeleteRelationship(ctx context.Context, id string) error {
	return queryDeleteRelationship(ctx, s.tx, id)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, relationshipID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, relationshipID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
