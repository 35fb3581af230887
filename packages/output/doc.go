// Package output renders call results and latency summaries.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//
// Formatters that accumulate results write them on Flush.
package output
