// Package models defines core data structures for questions, clusters, analysis results, and jobs.
package models

import "time"

// NoiseClusterID marks an item that density-based clustering left out of every cluster.
const NoiseClusterID = -1

// UnclusteredLabel is reported for items that carry no cluster label.
const UnclusteredLabel = "Unclustered"

// Item is one extracted question tied to the topic it was retrieved for.
// Text, Topic and Position are fixed once the item is created.
type Item struct {
	Text        string    `json:"text"`
	Topic       string    `json:"keyword"`
	Position    int       `json:"position"`
	Locale      string    `json:"locale,omitempty"`
	RetrievedAt time.Time `json:"scraped_at"`
	Embedding   []float32 `json:"embedding,omitempty"`
	// ClusterID is nil until the item joins a non-noise cluster.
	ClusterID    *int    `json:"cluster_id"`
	ClusterLabel string  `json:"cluster_label,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// HasEmbedding reports whether the embedding stage produced a vector for the item.
func (it *Item) HasEmbedding() bool {
	return len(it.Embedding) > 0
}

// Clustered reports whether the item belongs to a non-noise cluster.
func (it *Item) Clustered() bool {
	return it.ClusterID != nil
}

// DisplayLabel returns the cluster label, or UnclusteredLabel when there is none.
func (it *Item) DisplayLabel() string {
	if it.ClusterLabel == "" {
		return UnclusteredLabel
	}
	return it.ClusterLabel
}

// AssignCluster records cluster membership and the run quality on the item.
func (it *Item) AssignCluster(id int, label string, quality float64) {
	cid := id
	it.ClusterID = &cid
	it.ClusterLabel = label
	it.Confidence = quality
}

// ClearCluster drops any cluster membership, e.g. before re-clustering or for noise.
func (it *Item) ClearCluster() {
	it.ClusterID = nil
	it.ClusterLabel = ""
	it.Confidence = 0
}

// Cluster is a labeled group of items. Quality is the run-wide cohesion score,
// shared by every cluster produced in the same clustering pass.
type Cluster struct {
	ID      int     `json:"id"`
	Label   string  `json:"label"`
	Size    int     `json:"size"`
	Quality float64 `json:"quality"`
	Members []*Item `json:"questions"`
}
