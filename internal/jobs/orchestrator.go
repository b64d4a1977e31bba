// Package jobs admits analysis requests against quota, runs them in the
// background and tracks their lifecycle.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/pipeline"
	"github.com/hyperjump/paaexplorer/internal/quota"
	"github.com/hyperjump/paaexplorer/pkg/utils"
)

// Status messages and progress marks recorded on job records.
const (
	MessageQueued    = "Job queued for processing"
	MessageInit      = "Initializing..."
	MessageStarting  = "Starting analysis..."
	MessageCompleted = "Analysis completed successfully"
	messageFailed    = "Analysis failed: "

	ProgressInit     = 0.1
	ProgressStarting = 0.2
	ProgressDone     = 1.0
)

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req models.JobRequest, jobID string, progress pipeline.ProgressFunc) (*models.AnalysisResult, error)
}

// Metrics receives job lifecycle events.
type Metrics interface {
	JobSubmitted(plan models.Plan)
	AdmissionDenied(plan models.Plan)
	JobStarted()
	JobFinished(state models.JobState, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) JobSubmitted(models.Plan)                   {}
func (nopMetrics) AdmissionDenied(models.Plan)                {}
func (nopMetrics) JobStarted()                                {}
func (nopMetrics) JobFinished(models.JobState, time.Duration) {}

// Orchestrator owns the job store and the worker pool.
type Orchestrator struct {
	store    Store
	tracker  *quota.Tracker
	analyzer Analyzer
	pool     *ants.Pool
	poolSize int
	timeout  time.Duration
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time

	base     context.Context
	stop     context.CancelCauseFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	cancels  map[string]context.CancelCauseFunc
	shutdown bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = utils.OrNop(l) }
}

// WithPoolSize caps concurrently running jobs. Zero or less means unbounded.
func WithPoolSize(n int) Option {
	return func(o *Orchestrator) { o.poolSize = n }
}

// WithJobTimeout bounds a single run. Zero disables the timeout.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMetrics sets the lifecycle event sink.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator and its worker pool.
func NewOrchestrator(store Store, tracker *quota.Tracker, analyzer Analyzer, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		store:    store,
		tracker:  tracker,
		analyzer: analyzer,
		metrics:  nopMetrics{},
		logger:   zap.NewNop(),
		now:      time.Now,
		cancels:  make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(o)
	}
	size := o.poolSize
	if size <= 0 {
		size = -1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	o.pool = pool
	o.base, o.stop = context.WithCancelCause(context.Background())
	return o, nil
}

// Submit validates req, checks and consumes quota, records a queued job and
// schedules it. It returns without waiting for the analysis.
func (o *Orchestrator) Submit(ctx context.Context, req models.JobRequest, id models.Identity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	req = req.Clone()
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	o.mu.Lock()
	if o.shutdown {
		o.mu.Unlock()
		return "", ErrShuttingDown
	}
	o.wg.Add(1)
	o.mu.Unlock()
	scheduled := false
	defer func() {
		if !scheduled {
			o.wg.Done()
		}
	}()

	status := o.tracker.Check(id.UserID, id.Plan)
	if !status.Allowed {
		o.metrics.AdmissionDenied(id.Plan)
		o.logger.Info("admission denied",
			zap.String("user_id", id.UserID),
			zap.Int("daily_used", status.DailyUsed),
			zap.Int("monthly_used", status.MonthlyUsed))
		return "", &AdmissionDeniedError{Status: status}
	}
	o.tracker.Consume(id.UserID)

	rec := &models.JobRecord{
		ID:        uuid.NewString(),
		Owner:     id.UserID,
		State:     models.JobQueued,
		Message:   MessageQueued,
		CreatedAt: o.now(),
		Request:   req,
	}
	if err := o.store.Create(rec); err != nil {
		return "", err
	}

	taskCtx, cancel := context.WithCancelCause(o.base)
	o.mu.Lock()
	o.cancels[rec.ID] = cancel
	o.mu.Unlock()

	o.metrics.JobSubmitted(id.Plan)
	o.logger.Info("job queued",
		zap.String("job_id", rec.ID),
		zap.String("user_id", id.UserID),
		zap.Strings("keywords", req.Topics))

	scheduled = true
	go o.dispatch(taskCtx, rec.ID, req)
	return rec.ID, nil
}

// dispatch hands the job to the pool, waiting for a free worker when the pool is bounded.
func (o *Orchestrator) dispatch(ctx context.Context, jobID string, req models.JobRequest) {
	err := o.pool.Submit(func() {
		defer o.wg.Done()
		o.run(ctx, jobID, req)
	})
	if err != nil {
		defer o.wg.Done()
		o.logger.Error("schedule job", zap.String("job_id", jobID), zap.Error(err))
		o.fail(jobID, err)
		o.release(jobID)
	}
}

func (o *Orchestrator) run(ctx context.Context, jobID string, req models.JobRequest) {
	defer o.release(jobID)
	start := o.now()
	log := o.logger.With(zap.String("job_id", jobID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			o.finishFailed(jobID, fmt.Errorf("internal error: %v", r), start)
		}
	}()

	if ctx.Err() != nil {
		o.fail(jobID, context.Cause(ctx))
		return
	}
	err := o.store.Update(jobID, func(r *models.JobRecord) error {
		if r.State != models.JobQueued {
			return fmt.Errorf("%w: job is %s", ErrIllegalTransition, r.State)
		}
		t := o.now()
		r.State = models.JobRunning
		r.StartedAt = &t
		r.Progress = ProgressInit
		r.Message = MessageInit
		return nil
	})
	if err != nil {
		log.Debug("job not started", zap.Error(err))
		return
	}
	o.metrics.JobStarted()
	o.setProgress(jobID, ProgressStarting, MessageStarting)

	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeoutCause(ctx, o.timeout, ErrTimedOut)
		defer cancel()
	}

	result, err := o.analyzer.Analyze(runCtx, req, jobID, func(p float64, msg string) {
		o.setProgress(jobID, p, msg)
	})
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	if err != nil {
		if cause := context.Cause(runCtx); cause != nil {
			err = cause
		}
		log.Warn("analysis failed", zap.Error(err))
		o.finishFailed(jobID, err, start)
		return
	}

	err = o.store.Update(jobID, func(r *models.JobRecord) error {
		t := o.now()
		r.State = models.JobCompleted
		r.Progress = ProgressDone
		r.Message = MessageCompleted
		r.FinishedAt = &t
		r.Result = result
		return nil
	})
	if err != nil {
		log.Error("record completion", zap.Error(err))
		return
	}
	o.metrics.JobFinished(models.JobCompleted, o.now().Sub(start))
	log.Info("job completed", zap.Duration("elapsed", o.now().Sub(start)))
}

func (o *Orchestrator) finishFailed(jobID string, cause error, start time.Time) {
	if o.fail(jobID, cause) {
		o.metrics.JobFinished(models.JobFailed, o.now().Sub(start))
	}
}

// fail marks a non-terminal job failed and reports whether it did.
func (o *Orchestrator) fail(jobID string, cause error) bool {
	err := o.failIf(jobID, cause, func(s models.JobState) error {
		if s.Terminal() {
			return ErrAlreadyFinished
		}
		return nil
	})
	return err == nil
}

// failQueued marks a job failed only while it is still queued. A job that
// started meanwhile is left to its worker.
func (o *Orchestrator) failQueued(jobID string, cause error) error {
	return o.failIf(jobID, cause, func(s models.JobState) error {
		if s != models.JobQueued {
			return fmt.Errorf("%w: job is %s", ErrIllegalTransition, s)
		}
		return nil
	})
}

func (o *Orchestrator) failIf(jobID string, cause error, allowed func(models.JobState) error) error {
	reason := failureReason(cause)
	return o.store.Update(jobID, func(r *models.JobRecord) error {
		if err := allowed(r.State); err != nil {
			return err
		}
		t := o.now()
		r.State = models.JobFailed
		r.Message = messageFailed + reason
		r.Error = reason
		r.FinishedAt = &t
		return nil
	})
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return "unknown error"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrCancelled.Error()
	case errors.Is(err, ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return ErrTimedOut.Error()
	default:
		return err.Error()
	}
}

func (o *Orchestrator) setProgress(jobID string, p float64, msg string) {
	err := o.store.Update(jobID, func(r *models.JobRecord) error {
		if r.State != models.JobRunning {
			return fmt.Errorf("%w: job is %s", ErrIllegalTransition, r.State)
		}
		if p < r.Progress {
			return ErrProgressRegression
		}
		r.Progress = p
		r.Message = msg
		return nil
	})
	if err != nil {
		o.logger.Debug("progress update skipped", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	delete(o.cancels, jobID)
	o.mu.Unlock()
	if ok {
		cancel(nil)
	}
}

// Get returns a snapshot of the caller's job.
func (o *Orchestrator) Get(jobID string, id models.Identity) (*models.JobRecord, error) {
	rec, err := o.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if rec.Owner != id.UserID {
		return nil, ErrForbidden
	}
	return rec, nil
}

// Result returns the analysis result of a completed job.
func (o *Orchestrator) Result(jobID string, id models.Identity) (*models.AnalysisResult, error) {
	rec, err := o.Get(jobID, id)
	if err != nil {
		return nil, err
	}
	switch rec.State {
	case models.JobCompleted:
		if rec.Result == nil {
			return nil, ErrNoResult
		}
		return rec.Result, nil
	case models.JobFailed:
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, rec.Error)
	default:
		return nil, ErrNotReady
	}
}

// Cancel stops the caller's job. A queued job fails at once; a running job
// fails when its analysis observes the cancellation.
func (o *Orchestrator) Cancel(jobID string, id models.Identity) error {
	rec, err := o.Get(jobID, id)
	if err != nil {
		return err
	}
	if rec.State.Terminal() {
		return ErrAlreadyFinished
	}
	if rec.State == models.JobQueued {
		if err := o.failQueued(jobID, ErrCancelled); err != nil {
			o.logger.Debug("job left queue before cancel", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel(ErrCancelled)
	}
	o.logger.Info("job cancelled", zap.String("job_id", jobID), zap.String("state", string(rec.State)))
	return nil
}

// Quota returns the caller's current quota status.
func (o *Orchestrator) Quota(id models.Identity) quota.Status {
	return o.tracker.Check(id.UserID, id.Plan)
}

// List returns the caller's jobs, oldest first.
func (o *Orchestrator) List(id models.Identity) []*models.JobRecord {
	return o.store.List(Filter{Owner: id.UserID})
}

// Counts returns the number of running jobs and of all retained jobs.
func (o *Orchestrator) Counts() (running, total int) {
	return len(o.store.List(Filter{State: models.JobRunning})), o.store.Len()
}

// Shutdown stops accepting jobs, cancels running ones and waits up to timeout
// for them to record their outcome.
func (o *Orchestrator) Shutdown(timeout time.Duration) error {
	o.mu.Lock()
	o.shutdown = true
	o.mu.Unlock()
	o.stop(ErrCancelled)

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.logger.Warn("shutdown timed out waiting for jobs")
	}
	return o.pool.ReleaseTimeout(timeout)
}
