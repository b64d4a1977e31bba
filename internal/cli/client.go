// Package cli provides the HTTP client and output writers used by the paaexplorer commands.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/quota"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// JobStatus is the server's view of one job.
type JobStatus struct {
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

// Question is one clustered question in a results response.
type Question struct {
	Text       string  `json:"text"`
	Keyword    string  `json:"keyword"`
	Position   int     `json:"position"`
	ClusterID  *int    `json:"cluster_id"`
	Cluster    string  `json:"cluster"`
	Confidence float64 `json:"confidence"`
}

// Cluster is one labeled group in a results response.
type Cluster struct {
	ID        int        `json:"id"`
	Label     string     `json:"label"`
	Size      int        `json:"size"`
	Quality   float64    `json:"quality"`
	Questions []Question `json:"questions"`
}

// Results is the analysis output of a completed job.
type Results struct {
	JobID     string          `json:"job_id"`
	Status    models.JobState `json:"status"`
	Algorithm string          `json:"algorithm"`
	Questions []Question      `json:"questions"`
	Clusters  []Cluster       `json:"clusters"`
	Stats     map[string]any  `json:"stats"`
}

// QuotaInfo is the caller's plan and usage.
type QuotaInfo struct {
	UserID string       `json:"user_id"`
	Plan   models.Plan  `json:"plan"`
	Quota  quota.Status `json:"quota"`
}

// Client talks to a running paaexplorer server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL authenticating with token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Submit queues an analysis and returns the job id.
func (c *Client) Submit(ctx context.Context, req models.JobRequest) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", req, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// Status returns the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	var s JobStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(jobID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Wait polls the job every interval until it reaches a terminal state.
func (c *Client) Wait(ctx context.Context, jobID string, interval time.Duration) (*JobStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if s.Status.Terminal() {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Results returns the output of a completed job.
func (c *Client) Results(ctx context.Context, jobID string) (*Results, error) {
	var r Results
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(jobID)+"/results", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Quota returns the caller's quota status.
func (c *Client) Quota(ctx context.Context) (*QuotaInfo, error) {
	var q QuotaInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/quota", nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Export streams the job's results in format to w.
func (c *Client) Export(ctx context.Context, jobID, format string, w io.Writer) error {
	path := "/api/v1/jobs/" + url.PathEscape(jobID) + "/export?format=" + url.QueryEscape(format)
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(b)}
	}
	return resp, nil
}

// errorMessage extracts the most specific message from an error body.
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		switch {
		case e.Message != "":
			return e.Message
		case e.Error != "":
			return e.Error
		}
	}
	return strings.TrimSpace(string(body))
}
