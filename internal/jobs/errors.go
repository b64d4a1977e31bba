package jobs

import (
	"errors"
	"fmt"

	"github.com/hyperjump/paaexplorer/internal/quota"
)

var (
	ErrNotFound        = errors.New("job not found")
	ErrForbidden       = errors.New("access denied")
	ErrNotReady        = errors.New("job not completed yet")
	ErrNoResult        = errors.New("job completed without a result")
	ErrJobFailed       = errors.New("job failed")
	ErrAlreadyFinished = errors.New("job already finished")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrCancelled       = errors.New("cancelled")
	ErrTimedOut        = errors.New("timed out")
	ErrShuttingDown    = errors.New("orchestrator is shutting down")

	ErrDuplicateID        = errors.New("job id already exists")
	ErrIllegalTransition  = errors.New("illegal job state transition")
	ErrProgressRegression = errors.New("job progress cannot decrease")
)

// AdmissionDeniedError is returned by Submit when the caller is over quota.
// It carries the quota snapshot that caused the denial.
type AdmissionDeniedError struct {
	Status quota.Status
}

func (e *AdmissionDeniedError) Error() string {
	return fmt.Sprintf("quota exceeded: %d/%d today, %d/%d this month",
		e.Status.DailyUsed, e.Status.DailyLimit, e.Status.MonthlyUsed, e.Status.MonthlyLimit)
}

func (e *AdmissionDeniedError) Unwrap() error {
	return ErrQuotaExceeded
}
