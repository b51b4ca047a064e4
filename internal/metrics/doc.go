// Package metrics exports clustering activity as Prometheus metrics.
//
// A Recorder owns its registry. Pass Recorder.Observe as the clusterer
// monitor, register the embedding cache and the history store, then serve
// Recorder.Handler on the metrics address.
package metrics
