// Package config handles configuration loading and management for fetchforge.
//
// It provides functionality for:
//   - Loading configuration from .fetchforge.json, fetchforge.json or .fetchforgerc
//   - Default configuration values
//   - Turning transport settings into http client options
package config
