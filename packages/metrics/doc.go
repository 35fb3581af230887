// Package metrics collects call statistics for queryables.
//
// Recorder keeps latency percentiles in an HDR histogram for terminal
// summaries; Collector exports request counters and durations to
// Prometheus.
package metrics
