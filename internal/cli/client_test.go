package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/paaexplorer/internal/models"
)

func TestClient_SubmitSendsTokenAndBody(t *testing.T) {
	var gotAuth string
	var gotReq models.JobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"job_id":"j-1","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	id, err := c.Submit(context.Background(), models.JobRequest{Topics: []string{"seo tools"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "j-1" {
		t.Errorf("job id: got %q", id)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization: got %q", gotAuth)
	}
	if len(gotReq.Topics) != 1 || gotReq.Topics[0] != "seo tools" {
		t.Errorf("request body: got %+v", gotReq)
	}
}

func TestClient_APIErrorUsesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Quota exceeded","message":"Daily limit: 3/3, Monthly: 3/10"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").Submit(context.Background(), models.JobRequest{Topics: []string{"x"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Message != "Daily limit: 3/3, Monthly: 3/10" {
		t.Errorf("api error: %+v", apiErr)
	}
}

func TestClient_WaitPollsUntilTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := "running"
		if calls.Add(1) >= 3 {
			state = "completed"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"job_id": "j-1", "status": state})
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL, "tok").Wait(context.Background(), "j-1", time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s.Status != models.JobCompleted || calls.Load() != 3 {
		t.Errorf("status %s after %d calls", s.Status, calls.Load())
	}
}

func TestClient_ExportCopiesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "csv" {
			t.Errorf("format: got %q", r.URL.Query().Get("format"))
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("question,keyword\n"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	if err := NewClient(srv.URL, "tok").Export(context.Background(), "j-1", "csv", &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if buf.String() != "question,keyword\n" {
		t.Errorf("body: got %q", buf.String())
	}
}
