// Package cluster groups embedded items with k-means or DBSCAN, scores the
// grouping with the silhouette coefficient, and names each group.
package cluster

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/vector"
	"github.com/hyperjump/paaexplorer/pkg/utils"
)

// ErrDimensionMismatch is returned when embedded items disagree on vector length.
var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Defaults used when an option is not supplied.
const (
	DefaultSeed          uint64 = 42
	DefaultRestarts             = 10
	DefaultMaxIterations        = 300
	DefaultTolerance            = 1e-4
	DefaultEpsilon              = 0.3
	DefaultMinSamples           = 2
	minClusters                 = 2
	maxClusters                 = 8
	itemsPerCluster             = 5
)

// Outcome is the result of one clustering pass.
type Outcome struct {
	Algorithm Algorithm
	Clusters  []*models.Cluster
	Quality   float64
	// Noise counts embedded items left out of every cluster.
	Noise int
}

// Engine clusters items. It holds no per-run state and is safe for concurrent use.
type Engine struct {
	seed       uint64
	restarts   int
	maxIter    int
	tolerance  float64
	epsilon    float64
	minSamples int
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed sets the k-means random seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithRestarts sets how many k-means initialisations are tried.
func WithRestarts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.restarts = n
		}
	}
}

// WithMaxIterations bounds Lloyd iterations per restart.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIter = n
		}
	}
}

// WithDensity sets the DBSCAN radius and minimum neighbourhood size.
func WithDensity(eps float64, minSamples int) Option {
	return func(e *Engine) {
		if eps > 0 {
			e.epsilon = eps
		}
		if minSamples > 0 {
			e.minSamples = minSamples
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// NewEngine returns an Engine with default parameters overridden by opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		seed:       DefaultSeed,
		restarts:   DefaultRestarts,
		maxIter:    DefaultMaxIterations,
		tolerance:  DefaultTolerance,
		epsilon:    DefaultEpsilon,
		minSamples: DefaultMinSamples,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ClusterCount returns the partition cluster count for n points:
// n/5 clamped to [2, 8], never more than n.
func ClusterCount(n int) int {
	k := min(max(n/itemsPerCluster, minClusters), maxClusters)
	return min(k, n)
}

// Cluster groups the embedded items in place. Items without an embedding are
// ignored and left unclustered; every other item has its previous assignment
// replaced. Returned clusters are ordered by id.
func (e *Engine) Cluster(items []*models.Item, algorithm Algorithm) (*Outcome, error) {
	return e.run(items, algorithm.Effective(), 0)
}

// ClusterK runs the partition algorithm with an explicit cluster count.
func (e *Engine) ClusterK(items []*models.Item, k int) (*Outcome, error) {
	if k <= 0 {
		return nil, fmt.Errorf("cluster count must be positive, got %d", k)
	}
	return e.run(items, Partition, k)
}

func (e *Engine) run(items []*models.Item, algorithm Algorithm, k int) (*Outcome, error) {
	var embedded []*models.Item
	for _, it := range items {
		it.ClearCluster()
		if it.HasEmbedding() {
			embedded = append(embedded, it)
		}
	}
	out := &Outcome{Algorithm: algorithm}
	if len(embedded) == 0 {
		return out, nil
	}

	idx, err := vector.NewMemoryIndex(len(embedded[0].Embedding))
	if err != nil {
		return nil, err
	}
	points := make([][]float64, len(embedded))
	for i, it := range embedded {
		points[i] = utils.ToFloat64(it.Embedding)
	}
	if err := idx.Add(points...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}

	var labels []int
	switch algorithm {
	case Density:
		labels = dbscan(idx, e.epsilon, e.minSamples)
	default:
		if k == 0 {
			k = ClusterCount(len(points))
		}
		k = min(k, len(points))
		labels = kmeans(points, k, e.seed, e.restarts, e.maxIter, e.tolerance).labels
	}

	out.Quality = silhouette(points, labels)

	members := make(map[int][]*models.Item)
	for i, l := range labels {
		if l == models.NoiseClusterID {
			out.Noise++
			continue
		}
		members[l] = append(members[l], embedded[i])
	}
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		group := members[id]
		texts := make([]string, len(group))
		for i, it := range group {
			texts[i] = it.Text
		}
		label := Label(texts, id)
		for _, it := range group {
			it.AssignCluster(id, label, out.Quality)
		}
		out.Clusters = append(out.Clusters, &models.Cluster{
			ID:      id,
			Label:   label,
			Size:    len(group),
			Quality: out.Quality,
			Members: group,
		})
	}

	e.logger.Debug("clustering finished",
		zap.Stringer("algorithm", algorithm),
		zap.Int("points", len(points)),
		zap.Int("clusters", len(out.Clusters)),
		zap.Int("noise", out.Noise),
		zap.Float64("quality", out.Quality),
	)
	return out, nil
}
