// Package l3planes owns Layer 3 (Planes) of the surface data model: the
// streaming directional clustering engine.
//
// Responsibilities: assignment of unit normals to live clusters by angular
// similarity, greedy birth of new clusters from unmatched normals,
// depth-weighted sufficient statistics, the per-cluster survival state
// machine (active, stale, retired) with exponential forgetting, and the
// per-pixel label map.
// Key types: Engine, Cluster, Config, LabelMap.
//
// Per-frame flow:
//
//	AssignFrame -> Birth -> Aggregate -> survival.advance -> BuildLabelMap
//
// Assignment and aggregation are data-parallel over fixed pixel bands;
// partial results are merged in band order so output does not depend on
// the worker count. The survival manager is the only owner of persistent
// cluster state and runs sequentially.
//
// Dependency rule: L3 may depend on L1-L2, but never on pipeline,
// storage, export or monitor packages.
package l3planes
