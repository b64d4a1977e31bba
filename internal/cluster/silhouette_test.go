package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/paaexplorer/internal/models"
)

func TestSilhouette(t *testing.T) {
	points := [][]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}}

	assert.InDelta(t, 0.9, silhouette(points, []int{0, 0, 1, 1}), 0.01)
	assert.Zero(t, silhouette(points, []int{0, 0, 0, 0}), "one cluster")
	assert.Zero(t, silhouette(points, []int{0, 1, 2, 3}), "every point its own label")

	noisy := silhouette(points, []int{0, 0, 1, models.NoiseClusterID})
	assert.Less(t, noisy, 0.9)
}
