// Package pipeline drives a direction source through the clustering
// engine and fans every frame result out to sinks.
//
// This package is the composition root: it imports from layer packages
// (l2normals, l3planes) and defines the contracts that adapters
// (export, monitor, storage/sqlite) implement, but none of those packages
// import pipeline/.
package pipeline
