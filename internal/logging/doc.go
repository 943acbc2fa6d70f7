// Package logging provides structured slog loggers for the daemon,
// with typed attribute helpers and context-aware field enrichment.
package logging
