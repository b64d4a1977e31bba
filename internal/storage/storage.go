// Package storage archives finished jobs evicted from memory.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/paaexplorer/internal/models"
)

// ErrNotFound is returned when no archived job has the requested id.
var ErrNotFound = errors.New("archived job not found")

// Archive persists finished job records.
type Archive interface {
	Archive(ctx context.Context, rec *models.JobRecord) error
	Get(ctx context.Context, id string) (*models.JobRecord, error)
	List(ctx context.Context, owner string, offset, limit int) ([]*Summary, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Summary is one row of an archive listing.
type Summary struct {
	ID         string          `json:"job_id"`
	Owner      string          `json:"user_id"`
	State      models.JobState `json:"status"`
	Topics     []string        `json:"keywords"`
	Error      string          `json:"error,omitempty"`
	Questions  int             `json:"total_questions"`
	Clusters   int             `json:"total_clusters"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt time.Time       `json:"finished_at"`
	ArchivedAt time.Time       `json:"archived_at"`
}
