package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/pkg/utils"
)

// Archiver receives finished records before they are evicted.
type Archiver interface {
	Archive(ctx context.Context, rec *models.JobRecord) error
}

// Evictor removes finished jobs older than a TTL from a Store.
type Evictor struct {
	store    Store
	ttl      time.Duration
	archiver Archiver
	logger   *zap.Logger
	onEvict  func(n int)
}

// EvictorOption configures an Evictor.
type EvictorOption func(*Evictor)

// WithArchiver hands every evicted record to a before it is deleted.
func WithArchiver(a Archiver) EvictorOption {
	return func(e *Evictor) { e.archiver = a }
}

// WithEvictorLogger sets the logger.
func WithEvictorLogger(l *zap.Logger) EvictorOption {
	return func(e *Evictor) { e.logger = utils.OrNop(l) }
}

// WithEvictHook is called after each sweep with the number of evicted records.
func WithEvictHook(fn func(n int)) EvictorOption {
	return func(e *Evictor) { e.onEvict = fn }
}

// NewEvictor returns an Evictor for store.
func NewEvictor(store Store, ttl time.Duration, opts ...EvictorOption) *Evictor {
	e := &Evictor{store: store, ttl: ttl, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Sweep evicts terminal records that finished before now minus the TTL.
// A record whose archiving fails stays in the store for the next sweep.
func (e *Evictor) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-e.ttl)
	evicted := 0
	for _, rec := range e.store.List(Filter{Terminal: true}) {
		if rec.FinishedAt == nil || !rec.FinishedAt.Before(cutoff) {
			continue
		}
		if e.archiver != nil {
			if err := e.archiver.Archive(ctx, rec); err != nil {
				e.logger.Warn("archive job", zap.String("job_id", rec.ID), zap.Error(err))
				continue
			}
		}
		if err := e.store.Delete(rec.ID); err != nil {
			continue
		}
		evicted++
	}
	if evicted > 0 {
		e.logger.Info("evicted finished jobs", zap.Int("count", evicted), zap.Int("remaining", e.store.Len()))
	}
	if e.onEvict != nil {
		e.onEvict(evicted)
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (e *Evictor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 || e.ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			e.Sweep(ctx, t)
		}
	}
}
