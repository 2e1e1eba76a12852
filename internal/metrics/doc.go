// Package metrics exposes Prometheus metrics for backend calls and console
// sessions.
//
// BackendMetrics implements backend.Observer so every request made through a
// backend.Client is counted by operation and outcome and timed.
package metrics
