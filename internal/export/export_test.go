package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/paaexplorer/internal/models"
)

func sampleResult() *models.AnalysisResult {
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	a := &models.Item{Text: "What is the best espresso?", Topic: "coffee", Position: 1, RetrievedAt: at}
	b := &models.Item{Text: "Is tea healthier, really?", Topic: "tea", Position: 1, RetrievedAt: at}
	a.AssignCluster(0, "Espresso Best", 0.75)
	return &models.AnalysisResult{
		JobID:     "job-9",
		Topics:    []string{"coffee", "tea"},
		Algorithm: "dbscan",
		Items:     []*models.Item{a, b},
		Clusters:  []*models.Cluster{{ID: 0, Label: "Espresso Best", Size: 1, Quality: 0.75, Members: []*models.Item{a}}},
		Stats:     map[string]any{models.StatTotalItems: 2},
		CreatedAt: at,
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)

	_, err = ParseFormat("pdf")
	require.ErrorIs(t, err, ErrUnknownFormat)

	assert.Equal(t, "text/csv", CSV.ContentType())
	assert.Equal(t, "paa_analysis_job-9.json", JSON.Filename("job-9"))
}

func TestAuthorize(t *testing.T) {
	require.ErrorIs(t, Authorize(models.PlanFree), ErrExportForbidden)
	require.ErrorIs(t, Authorize(models.Plan("enterprise")), ErrExportForbidden)
	require.NoError(t, Authorize(models.PlanBuilder))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), CSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"What is the best espresso?", "coffee", "1", "0", "Espresso Best", "0.75", "2026-04-02T09:30:00Z"}, records[1])
	assert.Equal(t, []string{"Is tea healthier, really?", "tea", "1", "", models.UnclusteredLabel, "0", "2026-04-02T09:30:00Z"}, records[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), JSON))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "job-9", doc["job_id"])
	assert.Len(t, doc["questions"], 2)
	assert.Len(t, doc["clusters"], 1)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), XLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	questions, err := f.GetRows("Questions")
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, Header, questions[0])
	assert.Equal(t, "What is the best espresso?", questions[1][0])
	assert.Equal(t, "Espresso Best", questions[1][4])

	clusters, err := f.GetRows("Clusters")
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"id", "label", "size", "quality"}, clusters[0])
	assert.Equal(t, "Espresso Best", clusters[1][1])
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, Write(&buf, sampleResult(), Format("pdf")), ErrUnknownFormat)
}
