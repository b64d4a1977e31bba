package cluster

import (
	"github.com/hyperjump/paaexplorer/internal/models"
	"github.com/hyperjump/paaexplorer/internal/vector"
)

// silhouette returns the mean silhouette coefficient of labels over points.
// Noise points count as one extra label. The score is 0 when fewer than two
// non-noise clusters exist or when every point carries a distinct label.
func silhouette(points [][]float64, labels []int) float64 {
	n := len(points)
	groups := make(map[int][]int)
	clusters := 0
	for i, l := range labels {
		if _, ok := groups[l]; !ok && l != models.NoiseClusterID {
			clusters++
		}
		groups[l] = append(groups[l], i)
	}
	if clusters < 2 || len(groups) >= n {
		return 0
	}

	var total float64
	for i, p := range points {
		own := groups[labels[i]]
		if len(own) < 2 {
			continue // s(i) = 0
		}
		var a float64
		for _, j := range own {
			if j != i {
				a += vector.EuclideanDistance(p, points[j])
			}
		}
		a /= float64(len(own) - 1)

		b := -1.0
		for l, members := range groups {
			if l == labels[i] {
				continue
			}
			var d float64
			for _, j := range members {
				d += vector.EuclideanDistance(p, points[j])
			}
			d /= float64(len(members))
			if b < 0 || d < b {
				b = d
			}
		}
		if m := max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}
