// Package tmdb provides a minimal client for The Movie Database search
// API, used to confirm disc names parsed from volume labels. Candidate
// names are advisory only; the classifier's token-overlap guard decides
// whether a lookup result is trusted.
package tmdb
