package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/paaexplorer/internal/models"
)

// SQLiteArchive implements Archive using SQLite.
type SQLiteArchive struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteArchive opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteArchive{db: db, path: dbPath, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS archived_jobs (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		state TEXT NOT NULL,
		message TEXT,
		error TEXT,
		request TEXT NOT NULL,
		result TEXT,
		questions INTEGER NOT NULL DEFAULT 0,
		clusters INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		archived_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_archived_jobs_owner ON archived_jobs(owner);
	CREATE INDEX IF NOT EXISTS idx_archived_jobs_finished_at ON archived_jobs(finished_at);
	`
	_, err := db.Exec(schema)
	return err
}

// archivedResult is the stored form of an AnalysisResult. Embeddings are
// dropped and cluster members are rebuilt from item cluster ids on read.
type archivedResult struct {
	Topics    []string          `json:"keywords"`
	Locale    string            `json:"locale"`
	Algorithm string            `json:"algorithm"`
	Items     []models.Item     `json:"questions"`
	Clusters  []archivedCluster `json:"clusters"`
	Stats     map[string]any    `json:"stats"`
	CreatedAt time.Time         `json:"created_at"`
}

type archivedCluster struct {
	ID      int     `json:"id"`
	Label   string  `json:"label"`
	Size    int     `json:"size"`
	Quality float64 `json:"quality"`
}

func encodeResult(r *models.AnalysisResult) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	ar := archivedResult{
		Topics:    r.Topics,
		Locale:    r.Locale,
		Algorithm: r.Algorithm,
		Stats:     r.Stats,
		CreatedAt: r.CreatedAt,
	}
	for _, it := range r.Items {
		c := *it
		c.Embedding = nil
		ar.Items = append(ar.Items, c)
	}
	for _, c := range r.Clusters {
		ar.Clusters = append(ar.Clusters, archivedCluster{ID: c.ID, Label: c.Label, Size: c.Size, Quality: c.Quality})
	}
	b, err := json.Marshal(ar)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeResult(jobID, raw string) (*models.AnalysisResult, error) {
	var ar archivedResult
	if err := json.Unmarshal([]byte(raw), &ar); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	r := &models.AnalysisResult{
		JobID:     jobID,
		Topics:    ar.Topics,
		Locale:    ar.Locale,
		Algorithm: ar.Algorithm,
		Stats:     ar.Stats,
		CreatedAt: ar.CreatedAt,
	}
	byID := make(map[int]*models.Cluster, len(ar.Clusters))
	for _, c := range ar.Clusters {
		cl := &models.Cluster{ID: c.ID, Label: c.Label, Size: c.Size, Quality: c.Quality}
		byID[c.ID] = cl
		r.Clusters = append(r.Clusters, cl)
	}
	for i := range ar.Items {
		it := &ar.Items[i]
		r.Items = append(r.Items, it)
		if it.ClusterID != nil {
			if cl, ok := byID[*it.ClusterID]; ok {
				cl.Members = append(cl.Members, it)
			}
		}
	}
	return r, nil
}

// Archive inserts rec, replacing an earlier copy with the same id.
func (s *SQLiteArchive) Archive(ctx context.Context, rec *models.JobRecord) error {
	requestJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resultJSON, err := encodeResult(rec.Result)
	if err != nil {
		return err
	}
	var questions, clusters int
	if rec.Result != nil {
		questions, clusters = len(rec.Result.Items), len(rec.Result.Clusters)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO archived_jobs
		 (id, owner, state, message, error, request, result, questions, clusters, created_at, started_at, finished_at, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Owner, string(rec.State), rec.Message, rec.Error, string(requestJSON), resultJSON,
		questions, clusters, rec.CreatedAt, nullTime(rec.StartedAt), nullTime(rec.FinishedAt), s.now(),
	)
	return err
}

// Get returns an archived job with its result, if it had one.
func (s *SQLiteArchive) Get(ctx context.Context, id string) (*models.JobRecord, error) {
	var (
		rec                models.JobRecord
		state, requestJSON string
		message, errText   sql.NullString
		resultJSON         sql.NullString
		started, finished  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, state, message, error, request, result, created_at, started_at, finished_at
		 FROM archived_jobs WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Owner, &state, &message, &errText, &requestJSON, &resultJSON, &rec.CreatedAt, &started, &finished)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rec.State = models.JobState(state)
	rec.Message = message.String
	rec.Error = errText.String
	rec.StartedAt = timePtr(started)
	rec.FinishedAt = timePtr(finished)
	rec.Progress = 0
	if rec.State == models.JobCompleted {
		rec.Progress = 1
	}
	if err := json.Unmarshal([]byte(requestJSON), &rec.Request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if rec.Result, err = decodeResult(rec.ID, resultJSON.String); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// List returns archived job summaries, most recently finished first.
// An empty owner lists every owner.
func (s *SQLiteArchive) List(ctx context.Context, owner string, offset, limit int) ([]*Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, state, error, request, questions, clusters, created_at, finished_at, archived_at
		 FROM archived_jobs WHERE (? = '' OR owner = ?)
		 ORDER BY finished_at DESC, id LIMIT ? OFFSET ?`,
		owner, owner, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Summary
	for rows.Next() {
		var (
			sum         Summary
			state       string
			errText     sql.NullString
			requestJSON string
			finished    sql.NullTime
		)
		if err := rows.Scan(&sum.ID, &sum.Owner, &state, &errText, &requestJSON,
			&sum.Questions, &sum.Clusters, &sum.CreatedAt, &finished, &sum.ArchivedAt); err != nil {
			return nil, err
		}
		sum.State = models.JobState(state)
		sum.Error = errText.String
		if finished.Valid {
			sum.FinishedAt = finished.Time
		}
		var req models.JobRequest
		if json.Unmarshal([]byte(requestJSON), &req) == nil {
			sum.Topics = req.Topics
		}
		out = append(out, &sum)
	}
	return out, rows.Err()
}

// Count returns the number of archived jobs.
func (s *SQLiteArchive) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_jobs`).Scan(&count)
	return count, err
}

// SizeBytes returns the on-disk size of the database including its WAL files.
func (s *SQLiteArchive) SizeBytes() (int64, error) {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Close closes the database connection.
func (s *SQLiteArchive) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
