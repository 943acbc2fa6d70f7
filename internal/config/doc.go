// Package config loads, normalizes, and validates the TOML configuration
// for the daemon and CLI. Defaults live in defaults.go; every threshold
// the classifier and matcher consume is overridable from the config file.
package config
