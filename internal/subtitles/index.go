package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReferenceIndex maps episode codes to their ordered subtitle cues for one
// show season. Built once before matching begins and shared read-only
// across every concurrently matching title of a job.
type ReferenceIndex struct {
	show     string
	season   int
	episodes map[string][]Line
	codes    []string
}

// NewReferenceIndex builds an index from parsed per-episode cue lists.
// Episodes with no usable cues are dropped. Cues are sorted by start time.
func NewReferenceIndex(show string, season int, episodes map[string][]Line) *ReferenceIndex {
	index := &ReferenceIndex{
		show:     strings.TrimSpace(show),
		season:   season,
		episodes: make(map[string][]Line, len(episodes)),
	}
	for code, lines := range episodes {
		if len(lines) == 0 {
			continue
		}
		sorted := make([]Line, len(lines))
		copy(sorted, lines)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
		index.episodes[code] = sorted
		index.codes = append(index.codes, code)
	}
	sort.Strings(index.codes)
	return index
}

// LoadReferenceIndex builds an index from a directory of SRT files whose
// names carry episode codes. Files that do not parse an episode code or
// yield no cues are skipped.
func LoadReferenceIndex(dir, show string, season int) (*ReferenceIndex, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read subtitle directory: %w", err)
	}
	episodes := make(map[string][]Line)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".srt") {
			continue
		}
		fileSeason, episode, ok := ParseEpisodeCode(name)
		if !ok || fileSeason != season {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		lines := ParseSRT(DecodeText(raw))
		if len(lines) == 0 {
			continue
		}
		episodes[FormatEpisodeCode(fileSeason, episode)] = lines
	}
	return NewReferenceIndex(show, season, episodes), nil
}

// Show returns the show name the index was built for.
func (r *ReferenceIndex) Show() string { return r.show }

// Season returns the season number the index was built for.
func (r *ReferenceIndex) Season() int { return r.season }

// EpisodeCodes returns the sorted episode codes present in the index.
func (r *ReferenceIndex) EpisodeCodes() []string {
	cp := make([]string, len(r.codes))
	copy(cp, r.codes)
	return cp
}

// Len returns the number of indexed episodes.
func (r *ReferenceIndex) Len() int { return len(r.codes) }

// Lines returns the ordered cues for an episode, or nil when absent.
func (r *ReferenceIndex) Lines(code string) []Line {
	return r.episodes[code]
}

// WindowText returns the cleaned reference text for an episode overlapping
// [start-slack, end+slack]. The slack widens the alignment window to absorb
// per-disc timing drift between the rip and the reference subtitles.
func (r *ReferenceIndex) WindowText(code string, start, end, slack float64) string {
	lines, ok := r.episodes[code]
	if !ok {
		return ""
	}
	lo := start - slack
	if lo < 0 {
		lo = 0
	}
	return WindowText(lines, lo, end+slack)
}

// EpisodeDuration returns the reference runtime for an episode in seconds.
func (r *ReferenceIndex) EpisodeDuration(code string) float64 {
	return Duration(r.episodes[code])
}
