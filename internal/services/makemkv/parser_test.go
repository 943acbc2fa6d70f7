package makemkv

import "testing"

func TestParseClockDuration(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"1:30:00", 5400},
		{"0:21:45", 1305},
		{"0:00:09", 9},
		{"21:45", 0},
		{"junk", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseClockDuration(tt.value); got != tt.want {
			t.Errorf("parseClockDuration(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestParseProgress(t *testing.T) {
	percent, ok := parseProgress("PRGV:100,32768,65536")
	if !ok {
		t.Fatal("expected PRGV line to parse")
	}
	if percent != 50 {
		t.Fatalf("expected 50%%, got %.2f", percent)
	}

	if _, ok := parseProgress("MSG:1005,0,1,\"starting\""); ok {
		t.Fatal("MSG line should not parse as progress")
	}
	if _, ok := parseProgress("PRGV:0,10,0"); ok {
		t.Fatal("zero maximum should not parse")
	}
}

func TestParseScanOutputSkipsMalformedLines(t *testing.T) {
	output := "TINFO:garbage\nTINFO:0,9,0,\"not a duration\"\nTINFO:0,11,0,\"nope\"\n"
	tracks := parseScanOutput(output)
	if len(tracks) != 1 {
		t.Fatalf("expected the malformed title to survive with zero values, got %d tracks", len(tracks))
	}
	if tracks[0].DurationSeconds != 0 || tracks[0].SizeBytes != 0 {
		t.Fatalf("expected zeroed fields, got %+v", tracks[0])
	}
}
