// Package metric provides Prometheus metrics for the server core: accept
// and connection counters, byte throughput, and event-loop task counts.
// Metrics live in their own registry so embedding applications control
// exposition; Handler returns a ready promhttp endpoint for the default
// case.
package metric
