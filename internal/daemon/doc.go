// Package daemon hosts the long-running engram process. It enforces
// single-instance execution with a file lock, wires the disc monitor into
// the workflow manager, and serves the control API the CLI talks to.
package daemon
