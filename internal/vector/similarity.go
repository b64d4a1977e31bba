// Package vector provides distance helpers and a brute-force index for embedding vectors.
package vector

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// EuclideanDistance returns the L2 distance between a and b.
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// SquaredDistance returns the squared L2 distance between a and b.
func SquaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Mean returns the component-wise mean of vectors, or nil when there are none.
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		floats.Add(out, v)
	}
	floats.Scale(1/float64(len(vectors)), out)
	return out
}
