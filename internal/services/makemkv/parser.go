package makemkv

import (
	"sort"
	"strconv"
	"strings"

	"engram/internal/classifier"
)

// Robot-mode TINFO attribute ids used during a scan.
const (
	attrChapterCount = 8
	attrDuration     = 9
	attrSizeBytes    = 11
)

// parseScanOutput extracts one classifier track per title from makemkvcon
// robot output. Lines that are not TINFO records, or whose fields do not
// parse, are skipped rather than failing the whole scan.
func parseScanOutput(output string) []classifier.Track {
	type titleData struct {
		duration int
		size     int64
		chapters int
	}

	results := make(map[int]*titleData)

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "TINFO:") {
			continue
		}
		payload := strings.TrimPrefix(trimmed, "TINFO:")
		parts := strings.SplitN(payload, ",", 4)
		if len(parts) < 4 {
			continue
		}
		titleID, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		attrID, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		value := strings.Trim(strings.TrimSpace(parts[3]), "\"")
		entry, ok := results[titleID]
		if !ok {
			entry = &titleData{}
			results[titleID] = entry
		}
		switch attrID {
		case attrChapterCount:
			if n, err := strconv.Atoi(value); err == nil {
				entry.chapters = n
			}
		case attrDuration:
			entry.duration = parseClockDuration(value)
		case attrSizeBytes:
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				entry.size = n
			}
		}
	}

	ids := make([]int, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	tracks := make([]classifier.Track, 0, len(ids))
	for _, id := range ids {
		entry := results[id]
		tracks = append(tracks, classifier.Track{
			Index:           id,
			DurationSeconds: entry.duration,
			SizeBytes:       entry.size,
			ChapterCount:    entry.chapters,
		})
	}
	return tracks
}

// parseClockDuration converts a H:MM:SS duration string into seconds.
func parseClockDuration(value string) int {
	segments := strings.Split(strings.TrimSpace(value), ":")
	if len(segments) != 3 {
		return 0
	}
	hours, err := strconv.Atoi(segments[0])
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(segments[1])
	if err != nil {
		return 0
	}
	seconds, err := strconv.Atoi(segments[2])
	if err != nil {
		return 0
	}
	return hours*3600 + minutes*60 + seconds
}

// parseProgress reads a robot PRGV line into a completion percentage.
func parseProgress(line string) (float64, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "PRGV:") {
		return 0, false
	}
	parts := strings.Split(strings.TrimPrefix(trimmed, "PRGV:"), ",")
	if len(parts) < 3 {
		return 0, false
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, false
	}
	maximum, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || maximum <= 0 {
		return 0, false
	}
	return (total / maximum) * 100, true
}
