package main

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/cluster"
	"github.com/hyperjump/paaexplorer/internal/config"
	"github.com/hyperjump/paaexplorer/internal/embedding"
	"github.com/hyperjump/paaexplorer/internal/jobs"
	"github.com/hyperjump/paaexplorer/internal/metrics"
	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/pipeline"
	"github.com/hyperjump/paaexplorer/internal/quota"
	"github.com/hyperjump/paaexplorer/internal/retriever"
	"github.com/hyperjump/paaexplorer/internal/server"
	"github.com/hyperjump/paaexplorer/internal/storage"
)

// Components holds the wired server dependencies.
type Components struct {
	Retriever    retriever.Retriever
	Embedder     embedding.Embedder
	Orchestrator *jobs.Orchestrator
	Evictor      *jobs.Evictor
	Archive      *storage.SQLiteArchive
	Metrics      *metrics.Collector
	Server       *server.Server
	logger       *zap.Logger
}

// initializeComponents builds every server dependency from cfg.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{logger: logger}

	r, err := retriever.New(cfg.Retriever, logger)
	if err != nil {
		return nil, err
	}
	c.Retriever = r

	e, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}
	c.Embedder = e

	engine := cluster.NewEngine(
		cluster.WithSeed(cfg.Cluster.SeedOrDefault()),
		cluster.WithRestarts(cfg.Cluster.Restarts),
		cluster.WithMaxIterations(cfg.Cluster.MaxIterations),
		cluster.WithDensity(cfg.Cluster.Epsilon, cfg.Cluster.MinSamples),
		cluster.WithLogger(logger),
	)
	analyzer := pipeline.NewAnalyzer(r, e, engine,
		pipeline.WithLogger(logger),
		pipeline.WithNormalizer(pipeline.NewNormalizer(cfg.Pipeline.MinTextLength, cfg.Pipeline.MaxTextLength)),
	)

	orchOpts := []jobs.Option{
		jobs.WithLogger(logger),
		jobs.WithPoolSize(cfg.Jobs.MaxConcurrent),
		jobs.WithJobTimeout(cfg.Jobs.Timeout),
	}
	if cfg.Metrics.EnabledOrDefault() {
		c.Metrics = metrics.New(cfg.Metrics.Namespace)
		orchOpts = append(orchOpts, jobs.WithMetrics(c.Metrics))
	}

	store := jobs.NewMemoryStore()
	orch, err := jobs.NewOrchestrator(store, quota.NewTracker(quota.WithLimits(planLimits(cfg.Quota))), analyzer, orchOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Orchestrator = orch

	evictOpts := []jobs.EvictorOption{jobs.WithEvictorLogger(logger)}
	if cfg.Storage.ArchivePath != "" {
		archive, err := storage.NewSQLiteArchive(cfg.Storage.ArchivePath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("archive: %w", err)
		}
		c.Archive = archive
		evictOpts = append(evictOpts, jobs.WithArchiver(archive))
	}
	if c.Metrics != nil {
		evictOpts = append(evictOpts, jobs.WithEvictHook(c.Metrics.JobsEvicted))
	}
	c.Evictor = jobs.NewEvictor(store, cfg.Jobs.TTL, evictOpts...)

	var srvOpts []server.Option
	if c.Metrics != nil {
		srvOpts = append(srvOpts, server.WithMetricsHandler(c.Metrics.Handler()))
	}
	c.Server = server.NewServer(orch, server.NewAuthenticator(cfg.Auth), &cfg.Server, logger, srvOpts...)
	return c, nil
}

// planLimits converts configured plan ceilings to tracker limits.
func planLimits(cfg config.QuotaConfig) map[models.Plan]quota.Limits {
	limits := make(map[models.Plan]quota.Limits, len(cfg.Plans))
	for name, l := range cfg.Plans {
		limits[models.Plan(strings.ToLower(name))] = quota.Limits{Daily: l.Daily, Monthly: l.Monthly}
	}
	return limits
}

// Close releases the retriever, embedder and archive. The orchestrator is
// shut down separately so running jobs can finish first.
func (c *Components) Close() {
	if c.Retriever != nil {
		if err := retriever.Close(c.Retriever); err != nil {
			c.logger.Warn("retriever close failed", zap.Error(err))
		}
	}
	if c.Embedder != nil {
		if err := c.Embedder.Close(); err != nil {
			c.logger.Warn("embedder close failed", zap.Error(err))
		}
	}
	if c.Archive != nil {
		if err := c.Archive.Close(); err != nil {
			c.logger.Warn("archive close failed", zap.Error(err))
		}
	}
}
