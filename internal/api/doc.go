// Package api defines the wire types for the daemon control API and the
// HTTP client the CLI uses to talk to a running daemon. The server side
// lives in internal/daemon.
package api
