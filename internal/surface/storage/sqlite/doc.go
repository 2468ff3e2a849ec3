// Package sqlite persists clustering runs: run parameters, per-frame
// counters and per-frame cluster snapshots.
//
// The schema is embedded and applied with golang-migrate when a Store is
// opened. Domain packages (l3planes) never import this package; the
// pipeline reaches it through FrameRecorder.
package sqlite
