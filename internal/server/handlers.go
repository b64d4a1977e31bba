package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/export"
	"github.com/hyperjump/paaexplorer/internal/jobs"
	"github.com/hyperjump/paaexplorer/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	running, total := s.jobs.Counts()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"timestamp":   s.now(),
		"active_jobs": running,
		"total_jobs":  total,
	})
}

func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, demoPayload())
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	s.respondJSON(w, http.StatusOK, quotaResponse{
		UserID: id.UserID,
		Plan:   id.Plan,
		Quota:  s.jobs.Quota(id),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req models.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := IdentityFrom(r.Context())
	s.logger.Debug("submit request", zap.String("user_id", id.UserID), zap.Strings("keywords", req.Topics))

	jobID, err := s.jobs.Submit(r.Context(), req, id)
	if err != nil {
		var denied *jobs.AdmissionDeniedError
		if errors.As(err, &denied) {
			st := denied.Status
			s.respondJSON(w, http.StatusTooManyRequests, quotaExceededResponse{
				Error: "Quota exceeded",
				Message: fmt.Sprintf("Daily limit: %d/%d, Monthly: %d/%d",
					st.DailyUsed, st.DailyLimit, st.MonthlyUsed, st.MonthlyLimit),
				Quota:      st,
				UpgradeURL: "/pricing",
			})
			return
		}
		s.respondJobError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, submitResponse{
		JobID:   jobID,
		Status:  models.JobQueued,
		Message: "Job created successfully. Processing will begin shortly.",
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	recs := s.jobs.List(IdentityFrom(r.Context()))
	views := make([]jobStatusView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newJobStatusView(rec))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": views})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.jobs.Get(chi.URLParam(r, "id"), IdentityFrom(r.Context()))
	if err != nil {
		s.respondJobError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newJobStatusView(rec))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.jobs.Cancel(id, IdentityFrom(r.Context())); err != nil {
		s.respondJobError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"job_id": id, "status": "cancelled"})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	res, err := s.jobs.Result(chi.URLParam(r, "id"), IdentityFrom(r.Context()))
	if err != nil {
		s.respondJobError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newResultsView(res))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	if err := export.Authorize(id.Plan); err != nil {
		s.respondError(w, http.StatusForbidden, "Export feature requires Builder plan. Upgrade to unlock exports.")
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID := chi.URLParam(r, "id")
	res, err := s.jobs.Result(jobID, id)
	if err != nil {
		s.respondJobError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, res, format); err != nil {
		s.logger.Error("export failed", zap.String("job_id", jobID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(jobID)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// respondJobError maps orchestrator errors to HTTP statuses.
func (s *Server) respondJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, jobs.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, jobs.ErrNotReady):
		s.respondError(w, http.StatusConflict, "Job not completed yet")
	case errors.Is(err, jobs.ErrJobFailed):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrAlreadyFinished):
		s.respondError(w, http.StatusConflict, "Job already finished")
	case errors.Is(err, jobs.ErrNoResult):
		s.respondError(w, http.StatusNotFound, "Results not found")
	case errors.Is(err, jobs.ErrInvalidRequest):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrShuttingDown):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
