package subtitles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Line is a single subtitle cue with times in seconds from file start.
type Line struct {
	Start float64
	End   float64
	Text  string
}

var (
	urlPattern     = regexp.MustCompile(`(?:www\.|https?://|\w+\.(?:com|net|org|io|tv|cc|me))`)
	markupPattern  = regexp.MustCompile(`<[^>]+>`)
	bracketPattern = regexp.MustCompile(`\[[^\]]*\]`)
	stutterPattern = regexp.MustCompile(`([A-Za-z])-([A-Za-z])`)
)

var creditPatterns = []string{
	"sync",
	"subtitles by",
	"corrected by",
	"ripped by",
	"encoded by",
	"transcript by",
	"timing by",
}

// ParseSRT parses SRT content into cue lines, dropping watermark and ad
// blocks. Malformed blocks are skipped rather than failing the whole file.
func ParseSRT(content string) []Line {
	var lines []Line
	for _, block := range strings.Split(strings.TrimSpace(normalizeNewlines(content)), "\n\n") {
		rows := strings.Split(block, "\n")
		if len(rows) < 3 || !strings.Contains(rows[1], "-->") {
			continue
		}
		parts := strings.SplitN(rows[1], "-->", 2)
		start, err := ParseTimestamp(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		end, err := ParseTimestamp(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(rows[2:], " "))
		if text == "" {
			continue
		}
		if isWatermarkBlock(text, start) {
			continue
		}
		lines = append(lines, Line{Start: start, End: end, Text: text})
	}
	return lines
}

// ParseTimestamp converts an SRT timestamp (HH:MM:SS,mmm) into seconds.
func ParseTimestamp(stamp string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(stamp), ",", ".")
	fields := strings.Split(normalized, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", stamp)
	}
	var parsed [3]float64
	for i, field := range fields {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return 0, fmt.Errorf("malformed timestamp %q", stamp)
		}
		parsed[i] = value
	}
	return parsed[0]*3600 + parsed[1]*60 + parsed[2], nil
}

// Duration returns the maximum end timestamp across all cues. The maximum
// is used rather than the last cue because some files append watermark
// blocks timestamped near zero.
func Duration(lines []Line) float64 {
	var max float64
	for _, line := range lines {
		if line.End > max {
			max = line.End
		}
	}
	return max
}

// WindowText joins the cue text overlapping [start, end], cleaned of markup.
func WindowText(lines []Line, start, end float64) string {
	var texts []string
	for _, line := range lines {
		if line.End >= start && line.Start <= end {
			if cleaned := CleanCue(line.Text); cleaned != "" {
				texts = append(texts, cleaned)
			}
		}
	}
	return strings.Join(texts, " ")
}

// CleanCue strips markup tags, bracketed sound cues, and speech stutters
// ("w-what" becomes "what") from a cue.
func CleanCue(text string) string {
	cleaned := markupPattern.ReplaceAllString(text, "")
	cleaned = bracketPattern.ReplaceAllString(cleaned, "")
	cleaned = stutterPattern.ReplaceAllStringFunc(cleaned, func(match string) string {
		if strings.EqualFold(string(match[0]), string(match[2])) {
			return string(match[2])
		}
		return match
	})
	return strings.Join(strings.Fields(cleaned), " ")
}

// DecodeText converts raw subtitle bytes to a UTF-8 string, falling back to
// Windows-1252 when the content is not valid UTF-8. Subtitle rips in the
// wild commonly carry legacy single-byte encodings.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func isWatermarkBlock(text string, start float64) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if urlPattern.MatchString(lowered) {
		return true
	}
	stripped := strings.TrimSpace(markupPattern.ReplaceAllString(lowered, ""))
	if stripped != "" && urlPattern.MatchString(stripped) {
		return true
	}
	if start < 5.0 && len(strings.Fields(stripped)) <= 8 {
		for _, pattern := range creditPatterns {
			if strings.Contains(stripped, pattern) {
				return true
			}
		}
	}
	return false
}

func normalizeNewlines(content string) string {
	return strings.ReplaceAll(strings.ReplaceAll(content, "\r\n", "\n"), "\r", "\n")
}
