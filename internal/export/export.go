// Package export renders analysis results as CSV, JSON or XLSX.
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/paaexplorer/internal/models"
)

var (
	// ErrUnknownFormat is returned for an unsupported format name.
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrExportForbidden is returned when the caller's plan cannot export.
	ErrExportForbidden = errors.New("export requires an upgraded plan")
)

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	XLSX Format = "xlsx"
)

// Header is the column order of question rows in CSV and XLSX output.
var Header = []string{"question", "keyword", "position", "cluster_id", "cluster_label", "confidence", "scraped_at"}

// ParseFormat maps a name to a Format. The empty name means CSV.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return CSV, nil
	case CSV, JSON, XLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// Filename returns the download name for a job's export.
func (f Format) Filename(jobID string) string {
	return fmt.Sprintf("paa_analysis_%s.%s", jobID, f)
}

// Authorize returns ErrExportForbidden unless plan may export.
func Authorize(plan models.Plan) error {
	if !plan.CanExport() {
		return ErrExportForbidden
	}
	return nil
}

// Write renders r to w in format f.
func Write(w io.Writer, r *models.AnalysisResult, f Format) error {
	switch f {
	case CSV:
		return WriteCSV(w, r)
	case JSON:
		return WriteJSON(w, r)
	case XLSX:
		return WriteXLSX(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// rows flattens items into string cells in Header order.
func rows(r *models.AnalysisResult) [][]string {
	out := make([][]string, 0, len(r.Items))
	for _, it := range r.Items {
		clusterID := ""
		if it.ClusterID != nil {
			clusterID = strconv.Itoa(*it.ClusterID)
		}
		out = append(out, []string{
			it.Text,
			it.Topic,
			strconv.Itoa(it.Position),
			clusterID,
			it.DisplayLabel(),
			strconv.FormatFloat(it.Confidence, 'f', -1, 64),
			it.RetrievedAt.Format(time.RFC3339),
		})
	}
	return out
}
