package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "objdetect.db"

// ErrBatchNotFound is returned when no batch has the requested ID.
var ErrBatchNotFound = errors.New("batch not found")

// HistoryDB stores batch reports.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and file when missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run an upload first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Outcome hooks write from many goroutines; SQLite takes one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		bucket TEXT NOT NULL,
		file_count INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER,
		succeeded INTEGER,
		failed INTEGER,
		finished INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_batches_started ON batches(started_at);

	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		digest TEXT,
		object_key TEXT,
		s3_url TEXT,
		failed_stage TEXT,
		error TEXT,
		duration_ms INTEGER,
		outcome_json TEXT NOT NULL,
		UNIQUE(batch_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_batch ON outcomes(batch_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_digest ON outcomes(digest);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// BeginBatch records the start of a batch and returns its ID.
func (h *HistoryDB) BeginBatch(ctx context.Context, bucket string, startedAt time.Time, fileCount int) (int64, error) {
	res, err := h.db.ExecContext(ctx,
		`INSERT INTO batches (started_at, bucket, file_count) VALUES (?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339Nano), bucket, fileCount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}
	return res.LastInsertId()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RecordOutcome stores one file's outcome. Recording the same position twice
// replaces the earlier row.
func (h *HistoryDB) RecordOutcome(ctx context.Context, batchID int64, o model.Outcome) error {
	return insertOutcome(ctx, h.db, batchID, o)
}

func insertOutcome(ctx context.Context, ex execer, batchID int64, o model.Outcome) error {
	outcomeJSON, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to serialize outcome: %w", err)
	}

	var s3URL string
	if o.Result != nil {
		s3URL = o.Result.S3URL
	}

	query := `
	INSERT INTO outcomes (batch_id, position, file_name, digest, object_key, s3_url, failed_stage, error, duration_ms, outcome_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(batch_id, position) DO UPDATE SET
		file_name = excluded.file_name,
		digest = excluded.digest,
		object_key = excluded.object_key,
		s3_url = excluded.s3_url,
		failed_stage = excluded.failed_stage,
		error = excluded.error,
		duration_ms = excluded.duration_ms,
		outcome_json = excluded.outcome_json
	`

	_, err = ex.ExecContext(ctx, query,
		batchID,
		o.Index,
		o.File.Name,
		o.File.Digest,
		o.ObjectKey,
		s3URL,
		string(o.FailedStage),
		o.Error,
		o.Duration.Milliseconds(),
		string(outcomeJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// FinishBatch stores the batch totals and sets report.ID.
func (h *HistoryDB) FinishBatch(ctx context.Context, batchID int64, report *model.BatchReport) error {
	res, err := h.db.ExecContext(ctx,
		`UPDATE batches SET elapsed_ms = ?, succeeded = ?, failed = ?, file_count = ?, finished = 1 WHERE id = ?`,
		report.Elapsed.Milliseconds(), report.Succeeded(), report.Failed(), len(report.Outcomes), batchID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrBatchNotFound, batchID)
	}
	report.ID = batchID
	return nil
}

// SaveBatch stores a complete report in one transaction and sets report.ID.
func (h *HistoryDB) SaveBatch(ctx context.Context, report *model.BatchReport) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO batches (started_at, bucket, file_count, elapsed_ms, succeeded, failed, finished) VALUES (?, ?, ?, ?, ?, ?, 1)`,
		report.StartedAt.UTC().Format(time.RFC3339Nano), report.Bucket, len(report.Outcomes),
		report.Elapsed.Milliseconds(), report.Succeeded(), report.Failed(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, o := range report.Outcomes {
		if err := insertOutcome(ctx, tx, id, o); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	report.ID = id
	return id, nil
}

// BatchSummary describes a stored batch without its outcomes.
type BatchSummary struct {
	ID        int64         `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Bucket    string        `json:"bucket"`
	Files     int           `json:"files"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`

	// Finished is false for a batch that was interrupted.
	Finished bool `json:"finished"`
}

// ListBatches returns the most recent batches first. A limit of zero or
// less returns all of them.
func (h *HistoryDB) ListBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	query := `
	SELECT b.id, b.started_at, b.bucket, b.file_count,
		COALESCE(b.succeeded, (SELECT COUNT(*) FROM outcomes o WHERE o.batch_id = b.id AND o.error = '')),
		COALESCE(b.failed, (SELECT COUNT(*) FROM outcomes o WHERE o.batch_id = b.id AND o.error != '')),
		COALESCE(b.elapsed_ms, 0), b.finished
	FROM batches b
	ORDER BY b.id DESC
	`
	args := make([]interface{}, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var results []BatchSummary
	for rows.Next() {
		var (
			s         BatchSummary
			startedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&s.ID, &startedAt, &s.Bucket, &s.Files, &s.Succeeded, &s.Failed, &elapsedMS, &s.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		s.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		results = append(results, s)
	}

	return results, rows.Err()
}

// GetBatch loads a stored batch with its outcomes in submission order.
func (h *HistoryDB) GetBatch(ctx context.Context, id int64) (*model.BatchReport, error) {
	var (
		report    model.BatchReport
		startedAt string
		elapsedMS int64
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT id, started_at, bucket, COALESCE(elapsed_ms, 0) FROM batches WHERE id = ?`, id,
	).Scan(&report.ID, &startedAt, &report.Bucket, &elapsedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	report.StartedAt = parseTimestamp(startedAt)
	report.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	rows, err := h.db.QueryContext(ctx,
		`SELECT outcome_json FROM outcomes WHERE batch_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcomes: %w", err)
	}
	defer rows.Close()

	report.Outcomes = make([]model.Outcome, 0)
	for rows.Next() {
		var outcomeJSON string
		if err := rows.Scan(&outcomeJSON); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		var o model.Outcome
		if err := json.Unmarshal([]byte(outcomeJSON), &o); err != nil {
			continue // Skip malformed rows
		}
		report.Outcomes = append(report.Outcomes, o)
	}

	return &report, rows.Err()
}

// FindByDigest returns earlier successful outcomes for identical content,
// newest first.
func (h *HistoryDB) FindByDigest(ctx context.Context, digest string) ([]model.Outcome, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT outcome_json FROM outcomes WHERE digest = ? AND error = '' ORDER BY id DESC`, digest)
	if err != nil {
		return nil, fmt.Errorf("failed to query by digest: %w", err)
	}
	defer rows.Close()

	var results []model.Outcome
	for rows.Next() {
		var outcomeJSON string
		if err := rows.Scan(&outcomeJSON); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		var o model.Outcome
		if err := json.Unmarshal([]byte(outcomeJSON), &o); err != nil {
			continue
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

// timestampFormats are tried in order when reading stored times.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
