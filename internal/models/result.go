package models

import "time"

// Stats keys reported on every AnalysisResult.
const (
	StatTotalItems        = "total_questions"
	StatTotalClusters     = "total_clusters"
	StatProcessingTime    = "processing_time"
	StatProcessingSeconds = "processing_seconds"
	StatAverageSize       = "average_cluster_size"
	StatQuality           = "clustering_quality"
	// StatSuccessRate is items / (topics * per-topic cap). It is not normalized
	// and can exceed 1.0.
	StatSuccessRate     = "success_rate"
	StatTopicsProcessed = "keywords_processed"
	StatAlgorithm       = "algorithm_used"
)

// AnalysisResult is the immutable output of one pipeline run.
type AnalysisResult struct {
	JobID     string         `json:"job_id"`
	Topics    []string       `json:"keywords"`
	Locale    string         `json:"locale"`
	Algorithm string         `json:"algorithm"`
	Items     []*Item        `json:"questions"`
	Clusters  []*Cluster     `json:"clusters"`
	Stats     map[string]any `json:"stats"`
	CreatedAt time.Time      `json:"created_at"`
}

// ClusterByID returns the cluster with the given id, or nil.
func (r *AnalysisResult) ClusterByID(id int) *Cluster {
	for _, c := range r.Clusters {
		if c.ID == id {
			return c
		}
	}
	return nil
}
