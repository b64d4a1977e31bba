package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/paaexplorer/internal/cluster"
	"github.com/hyperjump/paaexplorer/internal/config"
	"github.com/hyperjump/paaexplorer/internal/embedding"
	"github.com/hyperjump/paaexplorer/internal/jobs"
	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/pipeline"
	"github.com/hyperjump/paaexplorer/internal/quota"
	"github.com/hyperjump/paaexplorer/internal/retriever"
)

const (
	freeToken    = "free-token"
	builderToken = "builder-token"
)

// blockingAnalyzer holds every job in running until release is closed.
type blockingAnalyzer struct {
	release chan struct{}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, req models.JobRequest, jobID string, progress pipeline.ProgressFunc) (*models.AnalysisResult, error) {
	select {
	case <-b.release:
		return &models.AnalysisResult{JobID: jobID, Topics: req.Topics, Stats: map[string]any{}}, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func testAuth(allowAnonymous bool) *Authenticator {
	return NewAuthenticator(config.AuthConfig{
		Tokens: map[string]config.TokenConfig{
			freeToken:    {UserID: "alice", Plan: "free"},
			builderToken: {UserID: "bob", Plan: "builder"},
		},
		AllowAnonymous: &allowAnonymous,
		AnonymousUser:  "anonymous",
	})
}

func newTestServer(t *testing.T, analyzer jobs.Analyzer) *Server {
	t.Helper()
	if analyzer == nil {
		embedder := embedding.NewMockEmbedder(32)
		analyzer = pipeline.NewAnalyzer(retriever.NewDemoRetriever(), embedder, cluster.NewEngine())
	}
	orch, err := jobs.NewOrchestrator(jobs.NewMemoryStore(), quota.NewTracker(), analyzer)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	t.Cleanup(func() { _ = orch.Shutdown(2 * time.Second) })
	return NewServer(orch, testAuth(false), &config.ServerConfig{Host: "127.0.0.1", Port: 0}, nil)
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func submit(t *testing.T, h http.Handler, token string, keywords ...string) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/jobs", token, map[string]any{"keywords": keywords})
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit: status %d body %s", w.Code, w.Body.String())
	}
	var resp submitResponse
	decode(t, w, &resp)
	return resp.JobID
}

func waitForState(t *testing.T, h http.Handler, token, jobID string, want models.JobState) jobStatusView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := do(t, h, http.MethodGet, "/api/v1/jobs/"+jobID, token, nil)
		var v jobStatusView
		decode(t, w, &v)
		if v.Status == want {
			return v
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return jobStatusView{}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	w := do(t, h, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "healthy" {
		t.Errorf("status field: got %v", body["status"])
	}
	if body["total_jobs"] != float64(0) || body["active_jobs"] != float64(0) {
		t.Errorf("counts: got %v", body)
	}
}

func TestDemo(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	w := do(t, h, http.MethodGet, "/api/v1/demo", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var body demoResponse
	decode(t, w, &body)
	if !body.IsDemo || len(body.Questions) != 8 || len(body.Clusters) != 3 {
		t.Errorf("demo payload: %+v", body)
	}
	if body.Clusters[0].Label != "Free SEO Tools" || body.Clusters[0].Size != 34 {
		t.Errorf("first cluster: %+v", body.Clusters[0])
	}
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	if w := do(t, h, http.MethodGet, "/api/v1/quota", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/quota", "nope", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unknown token: got %d", w.Code)
	}
}

func TestAnonymousToken(t *testing.T) {
	a := testAuth(true)
	id, ok := a.Resolve("whatever")
	if !ok || id.UserID != "anonymous" || id.Plan != models.PlanFree {
		t.Errorf("anonymous: got %+v ok=%v", id, ok)
	}
	if _, ok := a.Resolve(""); ok {
		t.Error("empty token must not resolve")
	}
}

func TestQuota(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	w := do(t, h, http.MethodGet, "/api/v1/quota", builderToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var body quotaResponse
	decode(t, w, &body)
	if body.UserID != "bob" || body.Plan != models.PlanBuilder || body.Quota.DailyLimit != 100 || !body.Quota.Allowed {
		t.Errorf("quota: %+v", body)
	}
}

func TestSubmitInvalid(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	w := do(t, h, http.MethodPost, "/api/v1/jobs", freeToken, map[string]any{"keywords": []string{" "}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank keywords: got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+freeToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d", rec.Code)
	}
}

func TestSubmitAndFetchResults(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	jobID := submit(t, h, freeToken, "seo tools", "keyword research")

	v := waitForState(t, h, freeToken, jobID, models.JobCompleted)
	if v.Progress != 1.0 || v.Message != jobs.MessageCompleted || v.Stats == nil {
		t.Errorf("completed view: %+v", v)
	}

	w := do(t, h, http.MethodGet, "/api/v1/jobs/"+jobID+"/results", freeToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("results: status %d body %s", w.Code, w.Body.String())
	}
	var res resultsView
	decode(t, w, &res)
	if res.JobID != jobID || len(res.Questions) == 0 || len(res.Clusters) == 0 {
		t.Errorf("results: %+v", res)
	}
	for _, q := range res.Questions {
		if q.Cluster == "" {
			t.Errorf("question %q has no display label", q.Text)
		}
	}

	w = do(t, h, http.MethodGet, "/api/v1/jobs", freeToken, nil)
	var list struct {
		Jobs []jobStatusView `json:"jobs"`
	}
	decode(t, w, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].JobID != jobID {
		t.Errorf("list: %+v", list)
	}
}

func TestQuotaExceeded(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	for i := 0; i < 3; i++ {
		submit(t, h, freeToken, "seo tools")
	}
	w := do(t, h, http.MethodPost, "/api/v1/jobs", freeToken, map[string]any{"keywords": []string{"seo tools"}})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth submit: got %d", w.Code)
	}
	var body quotaExceededResponse
	decode(t, w, &body)
	if body.Error != "Quota exceeded" || body.UpgradeURL != "/pricing" {
		t.Errorf("body: %+v", body)
	}
	if body.Message != "Daily limit: 3/3, Monthly: 3/10" {
		t.Errorf("message: got %q", body.Message)
	}
}

func TestJobOwnership(t *testing.T) {
	h := newTestServer(t, nil).Routes()
	jobID := submit(t, h, freeToken, "seo tools")

	if w := do(t, h, http.MethodGet, "/api/v1/jobs/"+jobID, builderToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("other owner status: got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/jobs/missing", freeToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing job: got %d", w.Code)
	}
}

func TestResultsNotReady(t *testing.T) {
	block := &blockingAnalyzer{release: make(chan struct{})}
	h := newTestServer(t, block).Routes()
	jobID := submit(t, h, builderToken, "seo tools")
	waitForState(t, h, builderToken, jobID, models.JobRunning)

	w := do(t, h, http.MethodGet, "/api/v1/jobs/"+jobID+"/results", builderToken, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("results before completion: got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != "Job not completed yet" {
		t.Errorf("error: got %q", body["error"])
	}

	close(block.release)
	waitForState(t, h, builderToken, jobID, models.JobCompleted)
}

func TestCancel(t *testing.T) {
	block := &blockingAnalyzer{release: make(chan struct{})}
	h := newTestServer(t, block).Routes()
	jobID := submit(t, h, freeToken, "seo tools")
	waitForState(t, h, freeToken, jobID, models.JobRunning)

	if w := do(t, h, http.MethodDelete, "/api/v1/jobs/"+jobID, freeToken, nil); w.Code != http.StatusOK {
		t.Fatalf("cancel: got %d", w.Code)
	}
	v := waitForState(t, h, freeToken, jobID, models.JobFailed)
	if v.Error == nil || !strings.Contains(*v.Error, "cancelled") {
		t.Errorf("error: %v", v.Error)
	}
	if w := do(t, h, http.MethodDelete, "/api/v1/jobs/"+jobID, freeToken, nil); w.Code != http.StatusConflict {
		t.Errorf("second cancel: got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/jobs/"+jobID+"/results", freeToken, nil); w.Code != http.StatusConflict {
		t.Errorf("results of failed job: got %d", w.Code)
	}
}

func TestExport(t *testing.T) {
	h := newTestServer(t, nil).Routes()

	freeJob := submit(t, h, freeToken, "seo tools")
	waitForState(t, h, freeToken, freeJob, models.JobCompleted)
	if w := do(t, h, http.MethodGet, "/api/v1/jobs/"+freeJob+"/export", freeToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("free export: got %d", w.Code)
	}

	jobID := submit(t, h, builderToken, "seo tools", "keyword research")
	waitForState(t, h, builderToken, jobID, models.JobCompleted)

	w := do(t, h, http.MethodGet, "/api/v1/jobs/"+jobID+"/export?format=csv", builderToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("csv export: got %d body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type: got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "paa_analysis_"+jobID+".csv") {
		t.Errorf("disposition: got %q", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "question,keyword,position") {
		t.Errorf("csv header: got %q", strings.SplitN(w.Body.String(), "\n", 2)[0])
	}

	if w := do(t, h, http.MethodGet, "/api/v1/jobs/"+jobID+"/export?format=pdf", builderToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown format: got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/jobs/"+jobID+"/export?format=xlsx", builderToken, nil); w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Errorf("xlsx export: got %d", w.Code)
	}
}
