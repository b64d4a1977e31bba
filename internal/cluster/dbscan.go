package cluster

import (
	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/vector"
)

// dbscan labels points with cluster ids in discovery order, or
// models.NoiseClusterID. A point is core when at least minSamples points,
// itself included, lie within eps.
func dbscan(idx *vector.MemoryIndex, eps float64, minSamples int) []int {
	const unvisited = -2
	n := idx.Size()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}
	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		neighbours := idx.Within(idx.Vector(i), eps)
		if len(neighbours) < minSamples {
			labels[i] = models.NoiseClusterID
			continue
		}
		id := next
		next++
		labels[i] = id
		queue := append([]int(nil), neighbours...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == models.NoiseClusterID {
				labels[j] = id // border point
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = id
			if more := idx.Within(idx.Vector(j), eps); len(more) >= minSamples {
				queue = append(queue, more...)
			}
		}
	}
	return labels
}
