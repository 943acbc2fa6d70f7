package subtitles_test

import (
	"testing"

	"engram/internal/subtitles"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Downloaded from www.tvsubtitles.net

2
00:00:12,000 --> 00:00:15,000
We should leave before dawn.

3
00:00:16,500 --> 00:00:19,250
<i>They will be watching the roads.</i>

4
00:20:01,000 --> 00:20:04,000
[door slams] Who's there?
`

func TestParseSRTFiltersWatermarks(t *testing.T) {
	lines := subtitles.ParseSRT(sampleSRT)
	if len(lines) != 3 {
		t.Fatalf("expected 3 cues after watermark filtering, got %d", len(lines))
	}
	if lines[0].Start != 12 || lines[0].End != 15 {
		t.Fatalf("unexpected first cue times: %+v", lines[0])
	}
	if lines[0].Text != "We should leave before dawn." {
		t.Fatalf("unexpected first cue text: %q", lines[0].Text)
	}
}

func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	content := `garbage

1
not a timestamp
Some text

2
00:00:05,000 --> 00:00:07,000
Valid cue.
`
	lines := subtitles.ParseSRT(content)
	if len(lines) != 1 || lines[0].Text != "Valid cue." {
		t.Fatalf("expected one valid cue, got %+v", lines)
	}
}

func TestParseSRTCreditLineNearStart(t *testing.T) {
	content := `1
00:00:00,500 --> 00:00:02,000
Subtitles by SomeGroup

2
00:00:30,000 --> 00:00:32,000
Actual dialogue here.
`
	lines := subtitles.ParseSRT(content)
	if len(lines) != 1 || lines[0].Text != "Actual dialogue here." {
		t.Fatalf("expected credit block to be dropped, got %+v", lines)
	}
}

func TestParseTimestamp(t *testing.T) {
	seconds, err := subtitles.ParseTimestamp("01:02:03,500")
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if seconds != 3723.5 {
		t.Fatalf("expected 3723.5, got %v", seconds)
	}
	if _, err := subtitles.ParseTimestamp("12:30"); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestDurationUsesMaxEndTime(t *testing.T) {
	lines := []subtitles.Line{
		{Start: 10, End: 14, Text: "a"},
		{Start: 2500, End: 2504, Text: "b"},
		{Start: 0.5, End: 2, Text: "trailing watermark position"},
	}
	if got := subtitles.Duration(lines); got != 2504 {
		t.Fatalf("expected 2504, got %v", got)
	}
	if got := subtitles.Duration(nil); got != 0 {
		t.Fatalf("expected 0 for empty cues, got %v", got)
	}
}

func TestWindowTextOverlap(t *testing.T) {
	lines := subtitles.ParseSRT(sampleSRT)
	text := subtitles.WindowText(lines, 10, 20)
	if text != "We should leave before dawn. They will be watching the roads." {
		t.Fatalf("unexpected window text: %q", text)
	}
	if got := subtitles.WindowText(lines, 5000, 5030); got != "" {
		t.Fatalf("expected empty text outside cue range, got %q", got)
	}
}

func TestCleanCue(t *testing.T) {
	cases := map[string]string{
		"<i>Hello</i> there":     "Hello there",
		"[door slams] Who's it?": "Who's it?",
		"W-What was that?":       "What was that?",
		"well-known fact":        "well-known fact",
	}
	for input, want := range cases {
		if got := subtitles.CleanCue(input); got != want {
			t.Errorf("CleanCue(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDecodeTextFallsBackToWindows1252(t *testing.T) {
	// "café" encoded in Windows-1252: é is 0xE9, invalid as UTF-8 here.
	raw := []byte{'c', 'a', 'f', 0xE9}
	if got := subtitles.DecodeText(raw); got != "café" {
		t.Fatalf("expected café, got %q", got)
	}
	if got := subtitles.DecodeText([]byte("plain utf8")); got != "plain utf8" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestParseEpisodeCode(t *testing.T) {
	cases := []struct {
		name    string
		season  int
		episode int
		ok      bool
	}{
		{"Show.S01E03.srt", 1, 3, true},
		{"show 2x11 final.srt", 2, 11, true},
		{"Season 3 - 07.srt", 3, 7, true},
		{"movie.srt", 0, 0, false},
	}
	for _, tc := range cases {
		season, episode, ok := subtitles.ParseEpisodeCode(tc.name)
		if ok != tc.ok || season != tc.season || episode != tc.episode {
			t.Errorf("ParseEpisodeCode(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tc.name, season, episode, ok, tc.season, tc.episode, tc.ok)
		}
	}
}

func TestFormatEpisodeCode(t *testing.T) {
	if got := subtitles.FormatEpisodeCode(1, 3); got != "S01E03" {
		t.Fatalf("expected S01E03, got %q", got)
	}
	if got := subtitles.FormatEpisodeCode(12, 104); got != "S12E104" {
		t.Fatalf("expected S12E104, got %q", got)
	}
}
