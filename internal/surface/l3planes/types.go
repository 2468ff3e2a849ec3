package l3planes

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// ClusterState represents the lifecycle state of a cluster.
type ClusterState string

const (
	ClusterActive  ClusterState = "active"  // Matched at least one pixel in the latest frame
	ClusterStale   ClusterState = "stale"   // Unmatched for 1..SurvivalHorizon consecutive frames
	ClusterRetired ClusterState = "retired" // Terminal; removed from the live set
)

// Per-pixel label sentinels. Cluster IDs are always >= 0.
const (
	Unassigned int64 = -1 // invalid input pixel
	NoMatch    int64 = -2 // valid pixel with no cluster within threshold (pre-birth only)
)

// Cluster is the persistent record of one directional cluster.
type Cluster struct {
	ID    int64
	State ClusterState

	// Sufficient statistics, decayed by the persistence prior each frame.
	ResultantSum r3.Vec  // weighted vector sum of assigned normals
	Count        float64 // decayed number of assigned normals

	// Derived after every frame.
	MeanDirection r3.Vec  // unit ResultantSum
	Concentration float64 // ‖ResultantSum‖
	Proportion    float64 // Count / Σ Count over reported clusters

	// Lifecycle
	SurvivalCounter  int    // frames since the last assignment
	BornFrame        uint64 // frame index of birth
	LastMatchedFrame uint64 // frame index of the latest assignment
}

// Centroid is the read-only view of a cluster used for assignment.
type Centroid struct {
	ID        int64
	Direction r3.Vec
}

// FrameStat is one cluster's contribution from a single frame.
type FrameStat struct {
	Sum   r3.Vec // Σ normal × depth / focal
	Count int    // number of pixels
}

// FrameResult is what the engine exposes to callers after each frame.
type FrameResult struct {
	FrameIndex    uint64    // 1-based frame counter
	Clusters      []Cluster // reported clusters, ascending ID
	Labels        *LabelMap // per-pixel cluster IDs
	Born          []int64   // IDs created this frame
	Retired       []int64   // IDs retired this frame
	ValidPixels   int       // pixels that took part in clustering
	NoMatchPixels int       // valid pixels that matched no pre-existing cluster
}

// Stats holds running engine counters (reset via Reset).
type Stats struct {
	FramesProcessed uint64
	FramesRejected  uint64
	ClustersBorn    uint64
	ClustersRetired uint64
	LiveClusters    int
	LastValidPixels int
}
