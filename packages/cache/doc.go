// Package cache provides the stores used by hitquery's caching behaviors.
//
// Two kinds of store are available:
//   - session: process-local memory, shared by every queryable in the process
//   - local: a sqlite database under the user cache directory that survives
//     restarts
//
// Entries carry an absolute expiration and are dropped on read once expired.
package cache
