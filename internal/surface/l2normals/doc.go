// Package l2normals owns Layer 2 (Normals) of the surface data model.
//
// Responsibilities: edge-preserving depth smoothing (self-guided filter),
// back-projection of depth pixels with pinhole intrinsics, and extraction
// of a per-pixel unit surface-normal field with validity flags. The Field
// type is the per-frame input of the L3 clustering engine.
// Key types: Field, Intrinsics, FileSource, SliceSource.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2normals
