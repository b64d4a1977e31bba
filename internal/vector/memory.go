package vector

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// MemoryIndex is an in-memory vector index using brute-force Euclidean search.
// Vectors are addressed by insertion position. It is not safe for concurrent writes.
type MemoryIndex struct {
	dimensions int
	vectors    [][]float64
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add appends vectors. Each must have the index dimension.
func (m *MemoryIndex) Add(vectors ...[]float64) error {
	for _, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), m.dimensions)
		}
	}
	m.vectors = append(m.vectors, vectors...)
	return nil
}

// Within returns the positions of all vectors at distance <= radius from query,
// in insertion order. The query's own position is included when it is indexed.
func (m *MemoryIndex) Within(query []float64, radius float64) []int {
	var out []int
	for i, v := range m.vectors {
		if EuclideanDistance(query, v) <= radius {
			out = append(out, i)
		}
	}
	return out
}

// Vector returns the vector stored at position i.
func (m *MemoryIndex) Vector(i int) []float64 {
	return m.vectors[i]
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	return len(m.vectors)
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}
