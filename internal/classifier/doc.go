// Package classifier decides, from track durations and the disc volume
// label alone, whether a disc holds a TV season or a movie and which
// tracks are worth ripping.
package classifier
