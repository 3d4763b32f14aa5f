package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"runreel/internal/config"
)

// Store manages job record persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("job record not found")

// ErrInvalidTransition indicates a status write that would skip or reorder
// the pending -> processing -> completed|failed lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job record database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "jobs.db"))
}

// OpenPath opens a record store at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// CreatePending inserts a new record for a generation attempt about to be
// submitted to the provider.
func (s *Store) CreatePending(ctx context.Context, ownerID, subjectID, script string) (*Record, error) {
	ownerID = strings.TrimSpace(ownerID)
	subjectID = strings.TrimSpace(subjectID)
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	if subjectID == "" {
		return nil, errors.New("subject id is required")
	}

	now := time.Now().UTC()
	record := &Record{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		SubjectID:     subjectID,
		Status:        StatusPending,
		ScriptContent: script,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO job_records (
            id, owner_id, subject_id, status, script_content, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OwnerID,
		record.SubjectID,
		record.Status,
		record.ScriptContent,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert job record: %w", err)
	}
	return record, nil
}

// MarkProcessing transitions a pending record to processing once the provider
// job id is known.
func (s *Store) MarkProcessing(ctx context.Context, id, providerJobID string) error {
	if strings.TrimSpace(providerJobID) == "" {
		return errors.New("provider job id is required")
	}
	return s.transition(
		ctx,
		id,
		`UPDATE job_records SET status = ?, provider_job_id = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing, providerJobID, nowStamp(), id, StatusPending,
	)
}

// MarkCompleted transitions a processing record to completed with the final
// media URL.
func (s *Store) MarkCompleted(ctx context.Context, id, mediaURL string) error {
	if strings.TrimSpace(mediaURL) == "" {
		return errors.New("media url is required")
	}
	return s.transition(
		ctx,
		id,
		`UPDATE job_records SET status = ?, result_url = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted, mediaURL, nowStamp(), id, StatusProcessing,
	)
}

// MarkFailed transitions a pending or processing record to failed with the
// classified error message.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	return s.transition(
		ctx,
		id,
		`UPDATE job_records SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, strings.TrimSpace(message), nowStamp(), id, StatusPending, StatusProcessing,
	)
}

func (s *Store) transition(ctx context.Context, id, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job record: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: record %s", ErrInvalidTransition, id)
}

// FindLatestActive returns the most recent pending or processing record for
// the owner, or nil when none exists. Used to finalize partial state when the
// in-memory record id is unavailable, and to resume orphaned jobs at startup.
func (s *Store) FindLatestActive(ctx context.Context, ownerID string) (*Record, error) {
	row := s.queryRowWithRetry(
		ctx,
		selectColumns+` FROM job_records
         WHERE owner_id = ? AND status IN (?, ?)
         ORDER BY created_at DESC LIMIT 1`,
		ownerID, StatusPending, StatusProcessing,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest active record: %w", err)
	}
	return record, nil
}

// GetByID fetches a single record.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.queryRowWithRetry(ctx, selectColumns+` FROM job_records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job record: %w", err)
	}
	return record, nil
}

// List returns records for an owner ordered newest first, optionally filtered
// by status. A zero limit returns all records.
func (s *Store) List(ctx context.Context, ownerID string, statuses []Status, limit int) ([]*Record, error) {
	query := selectColumns + ` FROM job_records WHERE owner_id = ?`
	args := []any{ownerID}
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
		query += ` AND status IN (` + placeholders + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job records: %w", err)
	}
	return result, nil
}

// FailStale marks records stuck in pending or processing since before the
// cutoff as failed. Run by the daemon janitor so crashed sessions never leave
// records non-terminal forever.
func (s *Store) FailStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE job_records SET status = ?, error_message = ?, updated_at = ?
         WHERE status IN (?, ?) AND updated_at < ?`,
		StatusFailed,
		"Abandoned by an interrupted session",
		nowStamp(),
		StatusPending,
		StatusProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale records: %w", err)
	}
	return res.RowsAffected()
}

// OwnerStats returns aggregated counts per lifecycle state for an owner.
func (s *Store) OwnerStats(ctx context.Context, ownerID string) (Stats, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT status, COUNT(1) FROM job_records WHERE owner_id = ? GROUP BY status`,
		ownerID,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("record stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan record stats: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusProcessing:
			stats.Processing = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate record stats: %w", err)
	}
	return stats, nil
}

const selectColumns = `SELECT id, owner_id, subject_id, status, script_content,
    provider_job_id, result_url, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var providerJobID, resultURL, errorMessage sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.SubjectID,
		&record.Status,
		&record.ScriptContent,
		&providerJobID,
		&resultURL,
		&errorMessage,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	record.ProviderJobID = providerJobID.String
	record.ResultURL = resultURL.String
	record.ErrorMessage = errorMessage.String
	record.CreatedAt = parseTimestamp(createdAt)
	record.UpdatedAt = parseTimestamp(updatedAt)
	return &record, nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *Store) queryRowWithRetry(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ensureContext(ctx), query, args...)
}
