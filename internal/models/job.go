package models

import "time"

// JobState is a job's lifecycle state.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether moving from s to next is legal.
// Legal moves: queued→running, queued→failed (cancelled before start),
// running→completed, running→failed. Staying in the same non-terminal state is allowed.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case JobQueued:
		return next == JobQueued || next == JobRunning || next == JobFailed
	case JobRunning:
		return next == JobRunning || next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// JobRecord tracks one submitted analysis.
type JobRecord struct {
	ID         string          `json:"job_id"`
	Owner      string          `json:"user_id"`
	State      JobState        `json:"status"`
	Progress   float64         `json:"progress"`
	Message    string          `json:"message"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at"`
	Error      string          `json:"error,omitempty"`
	Request    JobRequest      `json:"request"`
	Result     *AnalysisResult `json:"-"`
}

// Clone returns a copy that shares only the immutable result.
func (j *JobRecord) Clone() *JobRecord {
	c := *j
	c.Request = j.Request.Clone()
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Stats returns the result stats for a completed job, or nil otherwise.
func (j *JobRecord) Stats() map[string]any {
	if j.State != JobCompleted || j.Result == nil {
		return nil
	}
	return j.Result.Stats
}
