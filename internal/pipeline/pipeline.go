// Package pipeline runs one analysis: retrieve questions per topic, embed
// them, cluster them and compute summary statistics.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/cluster"
	"github.com/hyperjump/paaexplorer/internal/embedding"
	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/retriever"
	"github.com/hyperjump/paaexplorer/pkg/utils"
)

// Progress checkpoints reported after each stage.
const (
	ProgressRetrieved = 0.5
	ProgressEmbedded  = 0.7
	ProgressClustered = 0.9
)

// ProgressFunc receives stage checkpoints. It must not block for long.
type ProgressFunc func(progress float64, message string)

// Analyzer wires a retriever, an embedder and a cluster engine into one run.
type Analyzer struct {
	retriever  retriever.Retriever
	embedder   embedding.Embedder
	engine     *cluster.Engine
	normalizer *Normalizer
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = utils.OrNop(l) }
}

// WithNormalizer replaces the default candidate normalizer.
func WithNormalizer(n *Normalizer) Option {
	return func(a *Analyzer) { a.normalizer = n }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer returns an Analyzer.
func NewAnalyzer(r retriever.Retriever, e embedding.Embedder, engine *cluster.Engine, opts ...Option) *Analyzer {
	a := &Analyzer{
		retriever:  r,
		embedder:   e,
		engine:     engine,
		normalizer: NewNormalizer(0, 0),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze runs the full pipeline for req. req must already be validated.
// progress may be nil.
func (a *Analyzer) Analyze(ctx context.Context, req models.JobRequest, jobID string, progress ProgressFunc) (*models.AnalysisResult, error) {
	if progress == nil {
		progress = func(float64, string) {}
	}
	start := a.now()
	log := a.logger.With(zap.String("job_id", jobID))

	items, err := a.retrieve(ctx, req, log)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyResult
	}
	progress(ProgressRetrieved, fmt.Sprintf("Retrieved %d questions", len(items)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedded, err := a.embed(ctx, items)
	if err != nil {
		return nil, err
	}
	progress(ProgressEmbedded, fmt.Sprintf("Embedded %d questions", embedded))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	alg := cluster.ParseAlgorithm(req.Algorithm)
	if alg == cluster.UnknownFallsBackToPartition {
		log.Warn("unknown algorithm, using kmeans", zap.String("algorithm", req.Algorithm))
	}
	outcome, err := a.engine.Cluster(items, alg)
	if err != nil {
		return nil, fmt.Errorf("cluster questions: %w", err)
	}
	progress(ProgressClustered, fmt.Sprintf("Created %d clusters", len(outcome.Clusters)))

	elapsed := a.now().Sub(start)
	result := &models.AnalysisResult{
		JobID:     jobID,
		Topics:    append([]string(nil), req.Topics...),
		Locale:    req.Locale,
		Algorithm: req.Algorithm,
		Items:     items,
		Clusters:  outcome.Clusters,
		CreatedAt: a.now(),
	}
	result.Stats = Stats(result, req.ItemsPerTopic, elapsed)

	log.Info("analysis finished",
		zap.Int("questions", len(items)),
		zap.Int("embedded", embedded),
		zap.Int("clusters", len(outcome.Clusters)),
		zap.Float64("quality", outcome.Quality),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

func (a *Analyzer) retrieve(ctx context.Context, req models.JobRequest, log *zap.Logger) ([]*models.Item, error) {
	var items []*models.Item
	for i, topic := range req.Topics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Info("retrieving questions",
			zap.String("keyword", topic), zap.Int("index", i+1), zap.Int("of", len(req.Topics)))
		raw, err := a.retriever.Retrieve(ctx, topic, req.Locale, req.ItemsPerTopic)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("retrieval failed, skipping keyword", zap.String("keyword", topic), zap.Error(err))
			continue
		}
		position := 0
		for _, r := range raw {
			if position >= req.ItemsPerTopic {
				break
			}
			text, ok := a.normalizer.Normalize(r)
			if !ok {
				continue
			}
			position++
			items = append(items, &models.Item{
				Text:        text,
				Topic:       topic,
				Position:    position,
				Locale:      req.Locale,
				RetrievedAt: a.now(),
			})
		}
		if position == 0 {
			log.Warn("no questions kept for keyword", zap.String("keyword", topic))
		}
	}
	return items, nil
}

// embed attaches vectors to items in order and returns how many got one.
func (a *Analyzer) embed(ctx context.Context, items []*models.Item) (int, error) {
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	vecs, err := a.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingProvider, err)
	}
	n := 0
	for i, it := range items {
		if i < len(vecs) && len(vecs[i]) > 0 {
			it.Embedding = vecs[i]
			n++
		}
	}
	return n, nil
}

// Stats computes the summary statistics of a result. perTopic is the
// per-topic item cap requested.
func Stats(r *models.AnalysisResult, perTopic int, elapsed time.Duration) map[string]any {
	sizes := make([]float64, len(r.Clusters))
	qualities := make([]float64, len(r.Clusters))
	for i, c := range r.Clusters {
		sizes[i] = float64(c.Size)
		qualities[i] = c.Quality
	}
	var successRate float64
	if denom := len(r.Topics) * perTopic; denom > 0 {
		successRate = float64(len(r.Items)) / float64(denom)
	}
	return map[string]any{
		models.StatTotalItems:        len(r.Items),
		models.StatTotalClusters:     len(r.Clusters),
		models.StatProcessingTime:    fmt.Sprintf("%.1fs", elapsed.Seconds()),
		models.StatProcessingSeconds: elapsed.Seconds(),
		models.StatAverageSize:       utils.Mean(sizes),
		models.StatQuality:           utils.Mean(qualities),
		models.StatSuccessRate:       successRate,
		models.StatTopicsProcessed:   len(r.Topics),
		models.StatAlgorithm:         r.Algorithm,
	}
}
