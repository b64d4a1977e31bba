// Package embedding turns question text into vectors through an
// OpenAI-compatible service, with an LRU cache and a deterministic mock for tests.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/paaexplorer/internal/config"
)

// ErrUnknownProvider is returned by New for an unrecognised provider name.
var ErrUnknownProvider = errors.New("unknown embedding provider")

// Embedder produces vector embeddings for text.
// EmbedBatch returns one entry per input; an entry may be nil when the
// provider produced no vector for that text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder described by cfg, wrapped in a cache when
// cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var (
		base Embedder
		err  error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		base, err = NewOpenAIEmbedder(cfg, logger)
		if err != nil {
			return nil, err
		}
	case "mock":
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(base, cfg.CacheSize), nil
	}
	return base, nil
}
