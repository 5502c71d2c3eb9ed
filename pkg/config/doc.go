// Package config loads the acquisition worker's YAML configuration file
// into a nested Go struct over hardcoded defaults and fails fast with a
// ConfigurationError on anything missing or invalid. CLI-flag overrides
// are applied by cmd/acquisitiond after Load returns.
package config
