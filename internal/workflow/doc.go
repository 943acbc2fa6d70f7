// Package workflow coordinates the disc pipeline. A Manager owns every
// DiscJob's lifecycle, sequencing the classifier, ripper, matcher, and
// organizer while enforcing per-drive exclusivity, the one-shot subtitle
// barrier, cooperative cancellation, and the failure cascade onto
// non-terminal titles. Each job runs as its own goroutine with nested
// matching tasks bounded by a shared worker pool.
package workflow
