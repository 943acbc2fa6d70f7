package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Generic placeholder volume labels that carry no title information.
// Normalized form: uppercased with underscores and spaces removed.
var genericVolumeLabels = map[string]struct{}{
	"LOGICALVOLUMEID": {},
	"VIDEOTS":         {},
	"BDMV":            {},
	"DISC":            {},
	"DVD":             {},
	"BLURAY":          {},
	"BD":              {},
	"NOLABEL":         {},
	"UNTITLED":        {},
	"VOLUME":          {},
	"NEWVOLUME":       {},
}

var (
	seasonDiscPattern = regexp.MustCompile(`S(\d+)\s*D(\d+)`)
	seasonPatterns    = []*regexp.Regexp{
		regexp.MustCompile(`S(\d+)`),
		regexp.MustCompile(`SEASON\s*(\d+)`),
		regexp.MustCompile(`SERIES\s*(\d+)`),
	}
	discPatterns = []*regexp.Regexp{
		regexp.MustCompile(`D(\d+)`),
		regexp.MustCompile(`DISC\s*(\d+)`),
		regexp.MustCompile(`DISK\s*(\d+)`),
	}
	nameNumberPattern = regexp.MustCompile(`^([a-zA-Z\s]+)(\d+)$`)
	formatPattern     = regexp.MustCompile(`\b(DVD|BLURAY|BD)\s*\d*\b`)
)

// ParsedLabel holds everything extracted from a disc volume label.
type ParsedLabel struct {
	Name   string
	Season int
	Disc   int
}

// IsGenericLabel reports whether a volume label is a known placeholder
// carrying no content information.
func IsGenericLabel(label string) bool {
	normalized := strings.ToUpper(strings.NewReplacer("_", "", " ", "").Replace(label))
	_, ok := genericVolumeLabels[normalized]
	return ok
}

// ParseVolumeLabel extracts show name, season, and disc number from a disc
// volume label.
//
//	"THE_OFFICE_S1D2"      -> {The Office, 1, 2}
//	"FIREFLY_DISC1"        -> {Firefly, 0, 1}
//	"BREAKING_BAD_SEASON_2" -> {Breaking Bad, 2, 0}
//	"SOUTHPARK6"           -> {Southpark, 6, 0}
//
// Generic placeholder labels yield an empty ParsedLabel.
func ParseVolumeLabel(label string) ParsedLabel {
	if strings.TrimSpace(label) == "" || IsGenericLabel(label) {
		return ParsedLabel{}
	}

	working := strings.ReplaceAll(strings.ToUpper(label), "_", " ")
	var parsed ParsedLabel

	if match := seasonDiscPattern.FindStringSubmatch(working); match != nil {
		parsed.Season, _ = strconv.Atoi(match[1])
		parsed.Disc, _ = strconv.Atoi(match[2])
		working = seasonDiscPattern.ReplaceAllString(working, "")
	} else {
		for _, pattern := range seasonPatterns {
			if match := pattern.FindStringSubmatch(working); match != nil {
				parsed.Season, _ = strconv.Atoi(match[1])
				working = pattern.ReplaceAllString(working, "")
				break
			}
		}
		for _, pattern := range discPatterns {
			if match := pattern.FindStringSubmatch(working); match != nil {
				parsed.Disc, _ = strconv.Atoi(match[1])
				working = pattern.ReplaceAllString(working, "")
				break
			}
		}
	}

	// "NameNumber" labels like SOUTHPARK6 usually mean a season for TV sets.
	// Numbers of 100 or more are years or sequel numbering, not seasons.
	if parsed.Season == 0 {
		if match := nameNumberPattern.FindStringSubmatch(strings.TrimSpace(working)); match != nil {
			if number, err := strconv.Atoi(match[2]); err == nil && number > 0 && number < 100 {
				parsed.Season = number
				working = match[1]
			}
		}
	}

	working = formatPattern.ReplaceAllString(working, "")
	working = strings.Join(strings.Fields(working), " ")
	if working != "" {
		parsed.Name = cases.Title(language.Und).String(strings.ToLower(working))
	}
	return parsed
}
