package subtitles

import (
	"fmt"
	"regexp"
	"strconv"
)

var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)S(\d+)E(\d+)`),
	regexp.MustCompile(`(?i)(\d+)x(\d+)`),
	regexp.MustCompile(`(?i)Season\s*(\d+)\D*?(\d+)`),
}

// ParseEpisodeCode extracts season and episode numbers from a filename.
// Supports S01E01, 1x01, and "Season 1 - 01" style names.
func ParseEpisodeCode(filename string) (season, episode int, ok bool) {
	for _, pattern := range episodePatterns {
		match := pattern.FindStringSubmatch(filename)
		if match == nil {
			continue
		}
		season, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		episode, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		return season, episode, true
	}
	return 0, 0, false
}

// FormatEpisodeCode renders the canonical SxxEyy episode code.
func FormatEpisodeCode(season, episode int) string {
	return fmt.Sprintf("S%02dE%02d", season, episode)
}
