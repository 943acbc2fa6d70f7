// Package job defines the disc job and title state machines plus the
// persisted models shared across the pipeline. Validation lives here so
// every mutation path (workflow, CLI, store recovery) enforces the same
// transition rules.
package job
