package pipeline

import "errors"

var (
	// ErrEmptyResult is returned when no topic yielded a usable item.
	ErrEmptyResult = errors.New("no questions found for the given keywords")
	// ErrEmbeddingProvider wraps a failed embedding call.
	ErrEmbeddingProvider = errors.New("embedding provider failed")
)
