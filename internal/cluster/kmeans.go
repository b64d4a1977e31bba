package cluster

import (
	"math"
	"math/rand/v2"

	"github.com/hyperjump/paaexplorer/internal/vector"
)

type kmeansResult struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

// kmeans runs Lloyd's algorithm restarts times from k-means++ seeds and keeps
// the lowest-inertia run. Run r draws from a PCG stream seeded with (seed, r),
// so identical input always yields identical labels.
func kmeans(points [][]float64, k int, seed uint64, restarts, maxIter int, tol float64) kmeansResult {
	if restarts < 1 {
		restarts = 1
	}
	var best kmeansResult
	best.inertia = math.Inf(1)
	for r := 0; r < restarts; r++ {
		rng := rand.New(rand.NewPCG(seed, uint64(r)))
		res := lloyd(points, seedPlusPlus(points, k, rng), maxIter, tol)
		if res.inertia < best.inertia {
			best = res
		}
	}
	return best
}

func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(n)]))

	d2 := make([]float64, n)
	for i, p := range points {
		d2[i] = vector.SquaredDistance(p, centroids[0])
	}
	for len(centroids) < k {
		var total float64
		for _, d := range d2 {
			total += d
		}
		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range d2 {
				target -= d
				if target <= 0 && d > 0 {
					next = i
					break
				}
			}
		}
		c := clone(points[next])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := vector.SquaredDistance(p, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64, maxIter int, tol float64) kmeansResult {
	k := len(centroids)
	labels := make([]int, len(points))
	for iter := 0; iter < maxIter; iter++ {
		assign(points, centroids, labels)
		reseedEmpty(points, centroids, labels)

		members := make([][][]float64, k)
		for i, l := range labels {
			members[l] = append(members[l], points[i])
		}
		var shift float64
		for c := range centroids {
			if len(members[c]) == 0 {
				continue
			}
			next := vector.Mean(members[c])
			shift += vector.SquaredDistance(next, centroids[c])
			centroids[c] = next
		}
		if shift <= tol {
			break
		}
	}
	inertia := assign(points, centroids, labels)
	return kmeansResult{labels: labels, centroids: centroids, inertia: inertia}
}

// assign labels each point with its nearest centroid (lowest index on ties)
// and returns the total squared distance.
func assign(points, centroids [][]float64, labels []int) float64 {
	var inertia float64
	for i, p := range points {
		bestC, bestD := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := vector.SquaredDistance(p, centroid); d < bestD {
				bestC, bestD = c, d
			}
		}
		labels[i] = bestC
		inertia += bestD
	}
	return inertia
}

// reseedEmpty moves, for each empty cluster, the point farthest from its own
// centroid into it. Only points whose cluster keeps at least one member are eligible.
func reseedEmpty(points, centroids [][]float64, labels []int) {
	sizes := make([]int, len(centroids))
	for _, l := range labels {
		sizes[l]++
	}
	for c := range centroids {
		if sizes[c] > 0 {
			continue
		}
		far, farD := -1, -1.0
		for i, p := range points {
			if sizes[labels[i]] < 2 {
				continue
			}
			if d := vector.SquaredDistance(p, centroids[labels[i]]); d > farD {
				far, farD = i, d
			}
		}
		if far < 0 {
			return
		}
		sizes[labels[far]]--
		labels[far] = c
		sizes[c] = 1
		centroids[c] = clone(points[far])
	}
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
