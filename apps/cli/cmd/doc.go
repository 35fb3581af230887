// Package cmd implements the hitquery CLI commands using Cobra.
//
// Available commands:
//   - get: Send a GET request through the configured behaviors
//   - cache clear: Remove cached results
//   - cache purge: Remove expired cached results
//   - version: Show hitquery version information
//   - completion: Generate shell completion scripts
package cmd
