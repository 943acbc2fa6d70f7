// Command engram is the CLI for the engram disc ripping daemon. It hosts
// the daemon itself and the control commands that talk to it: status, job
// listings, review resolution, and cancellation.
package main
