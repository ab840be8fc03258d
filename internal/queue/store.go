package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mediacopier/internal/config"
	"mediacopier/internal/logging"
	"mediacopier/internal/matching"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; an old database must be cleared before it can be reused.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store persists job snapshots in SQLite. Load failures never propagate:
// a missing or corrupt database reads as an empty job list and logs.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.StateDir, "jobs.db"), logger)
}

// OpenPath opens a store at an explicit database path. A database file that
// sqlite cannot read is moved aside and replaced with a fresh one so corruption
// never blocks startup; a schema version mismatch still fails because it needs
// an operator decision.
func OpenPath(dbPath string, logger *slog.Logger) (*Store, error) {
	log := logging.NewComponentLogger(logger, "job-store")

	store, err := openDatabase(dbPath, log)
	if err == nil {
		return store, nil
	}
	if errors.Is(err, ErrSchemaMismatch) {
		return nil, err
	}
	if _, statErr := os.Stat(dbPath); statErr != nil {
		return nil, err
	}

	log.Error("job database unreadable, starting fresh",
		logging.String("path", dbPath),
		logging.Error(err))
	if renameErr := quarantineDatabase(dbPath); renameErr != nil {
		return nil, fmt.Errorf("move corrupt database aside: %w", renameErr)
	}
	return openDatabase(dbPath, log)
}

func openDatabase(dbPath string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, logger: log}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// quarantineDatabase renames the database and its WAL sidecars so the next
// open starts from nothing. An earlier quarantine at the same path is
// overwritten.
func quarantineDatabase(dbPath string) error {
	if err := os.Rename(dbPath, dbPath+".corrupt"); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dbPath + suffix)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveJobs replaces the persisted snapshot with jobs, preserving order.
func (s *Store) SaveJobs(ctx context.Context, jobs []Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM jobs"); err != nil {
		return fmt.Errorf("clear jobs table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs (
        id, position, name, order_id, status, progress, organization_mode,
        no_matches, dest_dir, error_detail, rules_json, items_json,
        created_at, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for position, job := range jobs {
		rulesJSON, err := json.Marshal(rulesRecord(job.Rules))
		if err != nil {
			return fmt.Errorf("marshal rules for job %s: %w", job.ID, err)
		}
		itemsJSON, err := json.Marshal(job.Items)
		if err != nil {
			return fmt.Errorf("marshal items for job %s: %w", job.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			job.ID,
			position,
			job.Name,
			job.OrderID,
			string(job.Status),
			job.Progress,
			string(job.Mode),
			boolToInt(job.NoMatches),
			job.DestDir,
			job.ErrorDetail,
			string(rulesJSON),
			string(itemsJSON),
			job.CreatedAt.UTC().Format(time.RFC3339Nano),
			job.UpdatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert job %s: %w", job.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// LoadJobs reads the persisted snapshot in stored order. Any failure is
// logged and yields an empty list; corruption never blocks startup.
func (s *Store) LoadJobs(ctx context.Context) []Job {
	rows, err := s.db.QueryContext(ctx, `SELECT
        id, name, order_id, status, progress, organization_mode,
        no_matches, dest_dir, error_detail, rules_json, items_json,
        created_at, updated_at
    FROM jobs ORDER BY position`)
	if err != nil {
		s.logger.Error("load jobs", logging.Error(err))
		return nil
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			s.logger.Error("decode persisted job, skipping", logging.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("iterate persisted jobs", logging.Error(err))
		return nil
	}
	return jobs
}

// ClearJobs removes all persisted jobs.
func (s *Store) ClearJobs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM jobs"); err != nil {
		return fmt.Errorf("clear jobs: %w", err)
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'mediacopier queue clear' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// copyRulesRecord is the stable persisted form of a rules snapshot.
type copyRulesRecord struct {
	AllowedExtensions []string `json:"allowed_extensions"`
	MinSizeMB         float64  `json:"min_size_mb"`
	FilterBySize      bool     `json:"filter_by_size"`
	FuzzyEnabled      bool     `json:"fuzzy_enabled"`
	FuzzyThreshold    float64  `json:"fuzzy_threshold"`
	SkipDuplicates    bool     `json:"skip_duplicates"`
	DryRun            bool     `json:"dry_run"`
	FailFast          bool     `json:"fail_fast"`
}

func rulesRecord(r matching.CopyRules) copyRulesRecord {
	return copyRulesRecord{
		AllowedExtensions: r.AllowedExtensions,
		MinSizeMB:         r.MinSizeMB,
		FilterBySize:      r.FilterBySize,
		FuzzyEnabled:      r.FuzzyEnabled,
		FuzzyThreshold:    r.FuzzyThreshold,
		SkipDuplicates:    r.SkipDuplicates,
		DryRun:            r.DryRun,
		FailFast:          r.FailFast,
	}
}

func (rec copyRulesRecord) rules() matching.CopyRules {
	return matching.CopyRules{
		AllowedExtensions: rec.AllowedExtensions,
		MinSizeMB:         rec.MinSizeMB,
		FilterBySize:      rec.FilterBySize,
		FuzzyEnabled:      rec.FuzzyEnabled,
		FuzzyThreshold:    rec.FuzzyThreshold,
		SkipDuplicates:    rec.SkipDuplicates,
		DryRun:            rec.DryRun,
		FailFast:          rec.FailFast,
	}
}

func scanJob(rows *sql.Rows) (Job, error) {
	var (
		job        Job
		status     string
		mode       string
		noMatches  int
		rulesJSON  string
		itemsJSON  string
		createdRaw string
		updatedRaw string
	)
	if err := rows.Scan(
		&job.ID, &job.Name, &job.OrderID, &status, &job.Progress, &mode,
		&noMatches, &job.DestDir, &job.ErrorDetail, &rulesJSON, &itemsJSON,
		&createdRaw, &updatedRaw,
	); err != nil {
		return Job{}, fmt.Errorf("scan job row: %w", err)
	}

	job.Status = Status(status)
	if !job.Status.Valid() {
		return Job{}, fmt.Errorf("unknown status %q for job %s", status, job.ID)
	}
	job.Mode = OrganizationMode(mode)
	if !job.Mode.Valid() {
		return Job{}, fmt.Errorf("unknown organization mode %q for job %s", mode, job.ID)
	}
	job.NoMatches = noMatches != 0

	var rec copyRulesRecord
	if err := json.Unmarshal([]byte(rulesJSON), &rec); err != nil {
		return Job{}, fmt.Errorf("decode rules for job %s: %w", job.ID, err)
	}
	job.Rules = rec.rules()

	if err := json.Unmarshal([]byte(itemsJSON), &job.Items); err != nil {
		return Job{}, fmt.Errorf("decode items for job %s: %w", job.ID, err)
	}

	var err error
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdRaw); err != nil {
		return Job{}, fmt.Errorf("parse created_at for job %s: %w", job.ID, err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedRaw); err != nil {
		return Job{}, fmt.Errorf("parse updated_at for job %s: %w", job.ID, err)
	}
	return job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
