// Package config handles configuration loading and management for hitquery.
//
// It provides functionality for:
//   - Loading configuration from .hitquery.json, .hitquery.yaml/.yml or
//     .hitquery.toml files
//   - Default configuration values
//   - Merging file settings with command line overrides
package config
