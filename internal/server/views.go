package server

import (
	"time"

	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/quota"
)

type submitResponse struct {
	JobID   string          `json:"job_id"`
	Status  models.JobState `json:"status"`
	Message string          `json:"message"`
}

type quotaExceededResponse struct {
	Error      string       `json:"error"`
	Message    string       `json:"message"`
	Quota      quota.Status `json:"quota"`
	UpgradeURL string       `json:"upgrade_url"`
}

type quotaResponse struct {
	UserID string       `json:"user_id"`
	Plan   models.Plan  `json:"plan"`
	Quota  quota.Status `json:"quota"`
}

type jobStatusView struct {
	JobID      string          `json:"job_id"`
	Status     models.JobState `json:"status"`
	Progress   float64         `json:"progress"`
	Message    string          `json:"message"`
	Keywords   []string        `json:"keywords"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at"`
	Error      *string         `json:"error"`
	Stats      map[string]any  `json:"stats"`
}

func newJobStatusView(rec *models.JobRecord) jobStatusView {
	v := jobStatusView{
		JobID:      rec.ID,
		Status:     rec.State,
		Progress:   rec.Progress,
		Message:    rec.Message,
		Keywords:   rec.Request.Topics,
		CreatedAt:  rec.CreatedAt,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Stats:      rec.Stats(),
	}
	if rec.Error != "" {
		e := rec.Error
		v.Error = &e
	}
	return v
}

type questionView struct {
	Text       string  `json:"text"`
	Keyword    string  `json:"keyword"`
	Position   int     `json:"position"`
	ClusterID  *int    `json:"cluster_id"`
	Cluster    string  `json:"cluster"`
	Confidence float64 `json:"confidence"`
}

type clusterView struct {
	ID        int            `json:"id"`
	Label     string         `json:"label"`
	Size      int            `json:"size"`
	Quality   float64        `json:"quality"`
	Questions []questionView `json:"questions"`
}

type resultsView struct {
	JobID     string          `json:"job_id"`
	Status    models.JobState `json:"status"`
	Algorithm string          `json:"algorithm"`
	Questions []questionView  `json:"questions"`
	Clusters  []clusterView   `json:"clusters"`
	Stats     map[string]any  `json:"stats"`
}

func newQuestionView(it *models.Item) questionView {
	return questionView{
		Text:       it.Text,
		Keyword:    it.Topic,
		Position:   it.Position,
		ClusterID:  it.ClusterID,
		Cluster:    it.DisplayLabel(),
		Confidence: it.Confidence,
	}
}

func newResultsView(r *models.AnalysisResult) resultsView {
	v := resultsView{
		JobID:     r.JobID,
		Status:    models.JobCompleted,
		Algorithm: r.Algorithm,
		Questions: make([]questionView, 0, len(r.Items)),
		Clusters:  make([]clusterView, 0, len(r.Clusters)),
		Stats:     r.Stats,
	}
	for _, it := range r.Items {
		v.Questions = append(v.Questions, newQuestionView(it))
	}
	for _, c := range r.Clusters {
		cv := clusterView{ID: c.ID, Label: c.Label, Size: c.Size, Quality: c.Quality}
		for _, m := range c.Members {
			cv.Questions = append(cv.Questions, newQuestionView(m))
		}
		v.Clusters = append(v.Clusters, cv)
	}
	return v
}
