// Package subtitles parses SRT reference files and builds the per-season
// reference index the episode matcher scores transcripts against.
package subtitles
