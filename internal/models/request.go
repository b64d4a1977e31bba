package models

import (
	"errors"
	"strings"
)

// Request defaults applied by Validate.
const (
	DefaultLocale        = "en-US"
	DefaultAlgorithm     = "kmeans"
	DefaultItemsPerTopic = 10
)

// ErrNoTopics is returned when a job request names no usable topic.
var ErrNoTopics = errors.New("at least one keyword is required")

// JobRequest holds the parameters of an analysis submission.
type JobRequest struct {
	Topics []string `json:"keywords"`
	Locale string   `json:"locale,omitempty"`
	// TimeRange is accepted and carried on the job but not used by the pipeline.
	TimeRange     string `json:"time_range,omitempty"`
	Algorithm     string `json:"algorithm,omitempty"`
	ItemsPerTopic int    `json:"max_questions_per_keyword,omitempty"`
}

// Validate trims topics, drops blanks and fills in defaults.
// Returns ErrNoTopics when nothing usable remains.
func (r *JobRequest) Validate() error {
	topics := make([]string, 0, len(r.Topics))
	for _, t := range r.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return ErrNoTopics
	}
	r.Topics = topics
	if strings.TrimSpace(r.Locale) == "" {
		r.Locale = DefaultLocale
	}
	if strings.TrimSpace(r.Algorithm) == "" {
		r.Algorithm = DefaultAlgorithm
	}
	if r.ItemsPerTopic <= 0 {
		r.ItemsPerTopic = DefaultItemsPerTopic
	}
	return nil
}

// Clone returns a deep copy of the request.
func (r JobRequest) Clone() JobRequest {
	r.Topics = append([]string(nil), r.Topics...)
	return r
}
