package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/codescan-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// withTx runs fn inside a fresh transaction, committing on success
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Findings operations

// upsertFindingWithQuerier replaces the findings row and its issues as a unit.
// Issues for a file are rewritten, never merged, so a re-scan fully supersedes
// the previous result.
func (s *SQLiteStorage) upsertFindingWithQuerier(ctx context.Context, q querier, record *types.FindingsRecord) error {
	var errorKind, errorMessage sql.NullString
	if record.ScanError != nil {
		errorKind = sql.NullString{String: string(record.ScanError.Kind), Valid: true}
		errorMessage = sql.NullString{String: record.ScanError.Message, Valid: true}
	}

	query := `
		INSERT INTO findings (file_path, content_hash, scanned_at, file_size, model, error_kind, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			scanned_at = excluded.scanned_at,
			file_size = excluded.file_size,
			model = excluded.model,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message
	`
	if _, err := q.ExecContext(ctx, query,
		record.FilePath, record.ContentHash, nullTime(record.ScannedAt),
		record.FileSize, record.Model, errorKind, errorMessage); err != nil {
		return fmt.Errorf("failed to upsert finding: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM issues WHERE file_path = ?", record.FilePath); err != nil {
		return fmt.Errorf("failed to clear issues: %w", err)
	}

	for i, issue := range record.Issues {
		_, err := q.ExecContext(ctx, `
			INSERT INTO issues (file_path, position, type, severity, description, line_hint, cwe)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.FilePath, i, string(issue.Type), string(issue.Severity),
			issue.Description, issue.LineHint, issue.CWE)
		if err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) UpsertFinding(ctx context.Context, record *types.FindingsRecord) error {
	return s.withTx(ctx, func(q querier) error {
		return s.upsertFindingWithQuerier(ctx, q, record)
	})
}

// getFindingWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getFindingWithQuerier(ctx context.Context, q querier, filePath string) (*types.FindingsRecord, error) {
	query := `
		SELECT file_path, content_hash, scanned_at, file_size, model, error_kind, error_message
		FROM findings
		WHERE file_path = ?
	`
	record, err := scanFindingRow(q.QueryRowContext(ctx, query, filePath))
	if err != nil {
		return nil, err
	}

	issues, err := s.listIssuesWithQuerier(ctx, q, filePath)
	if err != nil {
		return nil, err
	}
	record.Issues = issues
	return record, nil
}

func (s *SQLiteStorage) GetFinding(ctx context.Context, filePath string) (*types.FindingsRecord, error) {
	return s.getFindingWithQuerier(ctx, s.db, filePath)
}

// listFindingsWithQuerier returns every findings row with issues attached,
// ordered by file path
func (s *SQLiteStorage) listFindingsWithQuerier(ctx context.Context, q querier) ([]*types.FindingsRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT file_path, content_hash, scanned_at, file_size, model, error_kind, error_message
		FROM findings
		ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*types.FindingsRecord
	byPath := make(map[string]*types.FindingsRecord)
	for rows.Next() {
		record, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
		byPath[record.FilePath] = record
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	issueRows, err := q.QueryContext(ctx, `
		SELECT file_path, type, severity, description, line_hint, cwe
		FROM issues
		ORDER BY file_path, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer func() { _ = issueRows.Close() }()

	for issueRows.Next() {
		var filePath string
		var issue types.Issue
		var lineHint, cwe sql.NullString
		if err := issueRows.Scan(&filePath, &issue.Type, &issue.Severity, &issue.Description, &lineHint, &cwe); err != nil {
			return nil, err
		}
		issue.LineHint = lineHint.String
		issue.CWE = cwe.String
		if record, ok := byPath[filePath]; ok {
			record.Issues = append(record.Issues, issue)
		}
	}
	return records, issueRows.Err()
}

func (s *SQLiteStorage) ListFindings(ctx context.Context) ([]*types.FindingsRecord, error) {
	return s.listFindingsWithQuerier(ctx, s.db)
}

func (s *SQLiteStorage) deleteFindingWithQuerier(ctx context.Context, q querier, filePath string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM findings WHERE file_path = ?", filePath)
	if err != nil {
		return fmt.Errorf("failed to delete finding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteFinding(ctx context.Context, filePath string) error {
	return s.deleteFindingWithQuerier(ctx, s.db, filePath)
}

func (s *SQLiteStorage) listIssuesWithQuerier(ctx context.Context, q querier, filePath string) ([]types.Issue, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT type, severity, description, line_hint, cwe
		FROM issues
		WHERE file_path = ?
		ORDER BY position`, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []types.Issue
	for rows.Next() {
		var issue types.Issue
		var lineHint, cwe sql.NullString
		if err := rows.Scan(&issue.Type, &issue.Severity, &issue.Description, &lineHint, &cwe); err != nil {
			return nil, err
		}
		issue.LineHint = lineHint.String
		issue.CWE = cwe.String
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// State operations

// loadStateWithQuerier returns the persisted scan state, or a fresh zero state
// when nothing has been saved yet
func (s *SQLiteStorage) loadStateWithQuerier(ctx context.Context, q querier) (*types.ScanState, error) {
	state := &types.ScanState{}
	var runID sql.NullString
	var startTime, lastRun sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT run_id, last_scanned_folder, last_scanned_file,
		       total_files_scanned, total_files_skipped, scan_start_time, last_run
		FROM scan_state
		WHERE id = 1`).Scan(
		&runID, &state.LastScannedFolder, &state.LastScannedFile,
		&state.TotalFilesScanned, &state.TotalFilesSkipped, &startTime, &lastRun,
	)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan state: %w", err)
	}
	state.RunID = runID.String
	if startTime.Valid {
		state.ScanStartTime = startTime.Time
	}
	if lastRun.Valid {
		state.LastRun = lastRun.Time
	}

	rows, err := q.QueryContext(ctx, "SELECT path FROM completed_folders ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to load completed folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		state.CompletedFolders = append(state.CompletedFolders, path)
	}
	return state, rows.Err()
}

func (s *SQLiteStorage) LoadState(ctx context.Context) (*types.ScanState, error) {
	return s.loadStateWithQuerier(ctx, s.db)
}

// saveStateWithQuerier rewrites the singleton state row and the completed
// folder list
func (s *SQLiteStorage) saveStateWithQuerier(ctx context.Context, q querier, state *types.ScanState) error {
	query := `
		INSERT INTO scan_state (id, run_id, last_scanned_folder, last_scanned_file,
		                        total_files_scanned, total_files_skipped, scan_start_time, last_run)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			last_scanned_folder = excluded.last_scanned_folder,
			last_scanned_file = excluded.last_scanned_file,
			total_files_scanned = excluded.total_files_scanned,
			total_files_skipped = excluded.total_files_skipped,
			scan_start_time = excluded.scan_start_time,
			last_run = excluded.last_run
	`
	_, err := q.ExecContext(ctx, query,
		state.RunID, state.LastScannedFolder, state.LastScannedFile,
		state.TotalFilesScanned, state.TotalFilesSkipped,
		nullTime(state.ScanStartTime), nullTime(state.LastRun))
	if err != nil {
		return fmt.Errorf("failed to save scan state: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM completed_folders"); err != nil {
		return fmt.Errorf("failed to clear completed folders: %w", err)
	}
	for _, path := range state.CompletedFolders {
		if _, err := q.ExecContext(ctx, "INSERT INTO completed_folders (path) VALUES (?)", path); err != nil {
			return fmt.Errorf("failed to record completed folder: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) SaveState(ctx context.Context, state *types.ScanState) error {
	return s.withTx(ctx, func(q querier) error {
		return s.saveStateWithQuerier(ctx, q, state)
	})
}

// Status operations

func (s *SQLiteStorage) statsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	stats := &Stats{
		IssuesBySeverity: make(map[types.Severity]int),
		IssuesByType:     make(map[types.IssueType]int),
	}

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN error_kind IS NOT NULL THEN 1 END)
		FROM findings`).Scan(&stats.FilesRecorded, &stats.FilesFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to count findings: %w", err)
	}

	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT file_path) FROM issues").
		Scan(&stats.TotalIssues, &stats.FilesWithIssues)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT severity, COUNT(*) FROM issues GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("failed to count severities: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		stats.IssuesBySeverity[types.Severity(severity)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := q.QueryContext(ctx, "SELECT type, COUNT(*) FROM issues GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to count issue types: %w", err)
	}
	defer func() { _ = typeRows.Close() }()
	for typeRows.Next() {
		var issueType string
		var count int
		if err := typeRows.Scan(&issueType, &count); err != nil {
			return nil, err
		}
		stats.IssuesByType[types.IssueType(issueType)] = count
	}
	return stats, typeRows.Err()
}

func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	return s.statsWithQuerier(ctx, s.db)
}

// Transaction delegates

func (t *sqliteTx) UpsertFinding(ctx context.Context, record *types.FindingsRecord) error {
	return t.storage.upsertFindingWithQuerier(ctx, t.tx, record)
}

func (t *sqliteTx) GetFinding(ctx context.Context, filePath string) (*types.FindingsRecord, error) {
	return t.storage.getFindingWithQuerier(ctx, t.tx, filePath)
}

func (t *sqliteTx) ListFindings(ctx context.Context) ([]*types.FindingsRecord, error) {
	return t.storage.listFindingsWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) DeleteFinding(ctx context.Context, filePath string) error {
	return t.storage.deleteFindingWithQuerier(ctx, t.tx, filePath)
}

func (t *sqliteTx) LoadState(ctx context.Context) (*types.ScanState, error) {
	return t.storage.loadStateWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) SaveState(ctx context.Context, state *types.ScanState) error {
	return t.storage.saveStateWithQuerier(ctx, t.tx, state)
}

func (t *sqliteTx) Stats(ctx context.Context) (*Stats, error) {
	return t.storage.statsWithQuerier(ctx, t.tx)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the database
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

// Row scanning helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFindingRow(row *sql.Row) (*types.FindingsRecord, error) {
	record, err := scanFinding(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return record, err
}

func scanFinding(row rowScanner) (*types.FindingsRecord, error) {
	var record types.FindingsRecord
	var scannedAt sql.NullTime
	var model, errorKind, errorMessage sql.NullString
	err := row.Scan(&record.FilePath, &record.ContentHash, &scannedAt,
		&record.FileSize, &model, &errorKind, &errorMessage)
	if err != nil {
		return nil, err
	}
	if scannedAt.Valid {
		record.ScannedAt = scannedAt.Time
	}
	record.Model = model.String
	if errorKind.Valid {
		record.ScanError = &types.Failure{
			Kind:    types.FailureKind(errorKind.String),
			Message: errorMessage.String,
		}
	}
	return &record, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
