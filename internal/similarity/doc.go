// Package similarity provides the fuzzy string scoring used by the disc
// classifier and the episode matcher.
package similarity
