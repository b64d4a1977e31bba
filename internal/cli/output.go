package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/paaexplorer/internal/storage"
	"github.com/hyperjump/paaexplorer/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteStatus writes a job status to w in the given format.
func WriteStatus(w io.Writer, s *JobStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "job_id:    %s\n", s.JobID)
	fmt.Fprintf(w, "status:    %s\n", s.Status)
	fmt.Fprintf(w, "progress:  %.0f%%\n", s.Progress*100)
	fmt.Fprintf(w, "message:   %s\n", s.Message)
	if len(s.Keywords) > 0 {
		fmt.Fprintf(w, "keywords:  %s\n", strings.Join(s.Keywords, ", "))
	}
	if s.Error != nil {
		fmt.Fprintf(w, "error:     %s\n", *s.Error)
	}
	if len(s.Stats) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# stats")
		keys := make([]string, 0, len(s.Stats))
		for k := range s.Stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-22s %v\n", k+":", s.Stats[k])
		}
	}
	return nil
}

// WriteResults writes clustered results to w in the given format.
func WriteResults(w io.Writer, r *Results, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "\n%d questions in %d clusters (%s)\n\n", len(r.Questions), len(r.Clusters), r.Algorithm)
	for _, c := range r.Clusters {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s | Size: %d | Quality: %.4f\n", c.ID, c.Label, c.Size, c.Quality)
		for _, q := range c.Questions {
			fmt.Fprintf(w, "  • %s (%s)\n", utils.Truncate(q.Text, 120), q.Keyword)
		}
		fmt.Fprintln(w)
	}
	var loose []Question
	for _, q := range r.Questions {
		if q.ClusterID == nil {
			loose = append(loose, q)
		}
	}
	if len(loose) > 0 {
		fmt.Fprintln(w, "--- Unclustered ---")
		for _, q := range loose {
			fmt.Fprintf(w, "  • %s (%s)\n", utils.Truncate(q.Text, 120), q.Keyword)
		}
	}
	return nil
}

// WriteQuota writes the caller's quota to w in the given format.
func WriteQuota(w io.Writer, q *QuotaInfo, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, q)
	}
	fmt.Fprintf(w, "user_id:   %s\n", q.UserID)
	fmt.Fprintf(w, "plan:      %s\n", q.Plan)
	fmt.Fprintf(w, "daily:     %d/%d (%d remaining)\n", q.Quota.DailyUsed, q.Quota.DailyLimit, q.Quota.RemainingToday)
	fmt.Fprintf(w, "monthly:   %d/%d (%d remaining)\n", q.Quota.MonthlyUsed, q.Quota.MonthlyLimit, q.Quota.RemainingMonth)
	fmt.Fprintf(w, "can_submit: %t\n", q.Quota.Allowed)
	return nil
}

// ArchiveListing is the output of the archive command.
type ArchiveListing struct {
	Total     int64              `json:"total"`
	SizeBytes int64              `json:"size_bytes"`
	Jobs      []*storage.Summary `json:"jobs"`
}

// WriteArchive writes an archive listing to w in the given format.
func WriteArchive(w io.Writer, l *ArchiveListing, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, l)
	}
	fmt.Fprintf(w, "archived_jobs:  %d\n", l.Total)
	fmt.Fprintf(w, "size_bytes:     %d\n\n", l.SizeBytes)
	for _, s := range l.Jobs {
		fmt.Fprintf(w, "%s  %-9s  %s  %d questions / %d clusters  %s\n",
			s.ID, s.State, s.FinishedAt.Format("2006-01-02 15:04"), s.Questions, s.Clusters,
			TruncateWords(strings.Join(s.Topics, ", "), 8))
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
