package cluster

import "strings"

// Algorithm selects how embedded items are partitioned.
type Algorithm int

const (
	// Partition is k-means with a fixed cluster count and deterministic seeding.
	Partition Algorithm = iota
	// Density is DBSCAN with a fixed radius and minimum neighbour count.
	Density
	// UnknownFallsBackToPartition is any unrecognised name. It runs Partition.
	UnknownFallsBackToPartition
)

// ParseAlgorithm maps a free-form name to an Algorithm. It never fails:
// unrecognised names yield UnknownFallsBackToPartition.
func ParseAlgorithm(name string) Algorithm {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kmeans", "k-means", "partition":
		return Partition
	case "dbscan", "density":
		return Density
	default:
		return UnknownFallsBackToPartition
	}
}

// Effective returns the algorithm that actually runs.
func (a Algorithm) Effective() Algorithm {
	if a == UnknownFallsBackToPartition {
		return Partition
	}
	return a
}

func (a Algorithm) String() string {
	switch a {
	case Partition:
		return "kmeans"
	case Density:
		return "dbscan"
	default:
		return "unknown(kmeans)"
	}
}
