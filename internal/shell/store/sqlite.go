package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, ledgerErr("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ledgerErr("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, ledgerErr("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID           string  `db:"id"`
	ProjectPath  string  `db:"project_path"`
	ContextName  string  `db:"context_name"`
	Status       string  `db:"status"`
	Services     int     `db:"services"`
	ErrorMessage string  `db:"error_message"`
	StartedAt    string  `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	return finishRun(ctx, s.db, run)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	return listRuns(ctx, s.db, opts)
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return deleteRun(ctx, s.db, id)
}

// =============================================================================
// Artifact Operations
// =============================================================================

// artifactRow represents an artifact row in the database.
type artifactRow struct {
	ID        int64  `db:"id"`
	RunID     string `db:"run_id"`
	Key       string `db:"key"`
	Nature    string `db:"nature"`
	Mode      uint32 `db:"mode"`
	Size      int    `db:"size"`
	SHA256    string `db:"sha256"`
	CreatedAt string `db:"created_at"`
}

func (s *SQLiteStore) RecordArtifact(ctx context.Context, rec *ArtifactRecord) error {
	return recordArtifact(ctx, s.db, rec)
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]ArtifactRecord, error) {
	return listArtifacts(ctx, s.db, runID)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledgerErr("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return ledgerErr("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return ledgerErr("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	return finishRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	return listRuns(ctx, s.tx, opts)
}

func (s *txSQLiteStore) DeleteRun(ctx context.Context, id string) error {
	return deleteRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) RecordArtifact(ctx context.Context, rec *ArtifactRecord) error {
	return recordArtifact(ctx, s.tx, rec)
}

func (s *txSQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]ArtifactRecord, error) {
	return listArtifacts(ctx, s.tx, runID)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createRun(ctx context.Context, exec executor, run *Run) error {
	if run.ID == "" {
		return ledgerErr("CreateRun", "run", "", "run ID is required", ErrInvalidData)
	}

	query := `
		INSERT INTO runs (
			id, project_path, context_name, status, services,
			error_message, started_at, finished_at
		) VALUES (
			:id, :project_path, :context_name, :status, :services,
			:error_message, :started_at, :finished_at
		)`

	_, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return ledgerErr("CreateRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return ledgerErr("CreateRun", "run", run.ID, err.Error(), err)
	}

	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*Run, error) {
	query := `SELECT * FROM runs WHERE id = ?`

	var row runRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledgerErr("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, ledgerErr("GetRun", "run", id, err.Error(), err)
	}

	return rowToRun(&row), nil
}

func finishRun(ctx context.Context, exec executor, run *Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	query := `
		UPDATE runs SET
			status = :status,
			services = :services,
			error_message = :error_message,
			finished_at = :finished_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		return ledgerErr("FinishRun", "run", run.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ledgerErr("FinishRun", "run", run.ID, "run not found", ErrNotFound)
	}

	return nil
}

func listRuns(ctx context.Context, exec executor, opts ListOptions) ([]Run, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`

	var rows []runRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, ledgerErr("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]Run, 0, len(rows))
	for i := range rows {
		runs = append(runs, *rowToRun(&rows[i]))
	}
	return runs, nil
}

func deleteRun(ctx context.Context, exec executor, id string) error {
	query := `DELETE FROM runs WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return ledgerErr("DeleteRun", "run", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ledgerErr("DeleteRun", "run", id, "run not found", ErrNotFound)
	}

	return nil
}

func recordArtifact(ctx context.Context, exec executor, rec *ArtifactRecord) error {
	if rec.Key == "" {
		return ledgerErr("RecordArtifact", "artifact", rec.RunID, "artifact key is required", ErrInvalidData)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO artifacts (
			run_id, key, nature, mode, size, sha256, created_at
		) VALUES (
			:run_id, :key, :nature, :mode, :size, :sha256, :created_at
		)`

	row := artifactRow{
		RunID:     rec.RunID,
		Key:       rec.Key,
		Nature:    rec.Nature,
		Mode:      uint32(rec.Mode.Perm()),
		Size:      rec.Size,
		SHA256:    rec.SHA256,
		CreatedAt: rec.CreatedAt.UTC().Format(timeLayout),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: artifacts.run_id, artifacts.key") {
			return ledgerErr("RecordArtifact", "artifact", rec.Key, "artifact already recorded for run", ErrDuplicateKey)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return ledgerErr("RecordArtifact", "artifact", rec.Key, "run "+rec.RunID+" does not exist", ErrForeignKey)
		}
		return ledgerErr("RecordArtifact", "artifact", rec.Key, err.Error(), err)
	}

	rec.ID, _ = result.LastInsertId()
	return nil
}

func listArtifacts(ctx context.Context, exec executor, runID string) ([]ArtifactRecord, error) {
	query := `SELECT * FROM artifacts WHERE run_id = ? ORDER BY id`

	var rows []artifactRow
	err := exec.SelectContext(ctx, &rows, query, runID)
	if err != nil {
		return nil, ledgerErr("ListArtifacts", "artifact", runID, err.Error(), err)
	}

	records := make([]ArtifactRecord, 0, len(rows))
	for _, row := range rows {
		createdAt, _ := time.Parse(timeLayout, row.CreatedAt)
		records = append(records, ArtifactRecord{
			ID:        row.ID,
			RunID:     row.RunID,
			Key:       row.Key,
			Nature:    row.Nature,
			Mode:      fs.FileMode(row.Mode),
			Size:      row.Size,
			SHA256:    row.SHA256,
			CreatedAt: createdAt,
		})
	}
	return records, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func runToRow(run *Run) runRow {
	row := runRow{
		ID:           run.ID,
		ProjectPath:  run.ProjectPath,
		ContextName:  run.ContextName,
		Status:       string(run.Status),
		Services:     run.Services,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    run.StartedAt.UTC().Format(timeLayout),
	}
	if row.Status == "" {
		row.Status = string(RunRunning)
	}
	if run.FinishedAt != nil {
		s := run.FinishedAt.UTC().Format(timeLayout)
		row.FinishedAt = &s
	}
	return row
}

func rowToRun(row *runRow) *Run {
	startedAt, _ := time.Parse(timeLayout, row.StartedAt)
	run := &Run{
		ID:           row.ID,
		ProjectPath:  row.ProjectPath,
		ContextName:  row.ContextName,
		Status:       RunStatus(row.Status),
		Services:     row.Services,
		ErrorMessage: row.ErrorMessage,
		StartedAt:    startedAt,
	}
	if row.FinishedAt != nil {
		t, _ := time.Parse(timeLayout, *row.FinishedAt)
		run.FinishedAt = &t
	}
	return run
}
