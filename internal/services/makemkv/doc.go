// Package makemkv wraps the makemkvcon CLI in robot mode. The client scans
// a disc into the track list the classifier consumes and rips individual
// titles into a staging directory. Command execution sits behind an Executor
// so tests can feed canned robot output.
package makemkv
