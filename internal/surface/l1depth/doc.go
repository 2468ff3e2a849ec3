// Package l1depth owns Layer 1 (Depth) of the surface data model.
//
// Responsibilities: the depth image type, raw-unit to metre conversion,
// and decoding of 16-bit depth PNGs as produced by structured-light and
// time-of-flight cameras.
// Key types: Image.
//
// Dependency rule: L1 depends on nothing above it.
package l1depth
