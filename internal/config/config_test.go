package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"engram/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to be reported")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Matcher.ChunkSeconds != 30 {
		t.Fatalf("expected default chunk seconds, got %d", cfg.Matcher.ChunkSeconds)
	}
	if cfg.Classifier.NameSimilarityMin != 0.35 {
		t.Fatalf("expected default name similarity, got %v", cfg.Classifier.NameSimilarityMin)
	}
	if len(cfg.Drive.Devices) != 1 || cfg.Drive.Devices[0] != "/dev/sr0" {
		t.Fatalf("expected default drive, got %v", cfg.Drive.Devices)
	}
}

func TestLoadOverridesThresholds(t *testing.T) {
	path := writeConfig(t, `
[matcher]
early_exit_confidence = 0.9
auto_accept_floor = 0.8
workers = 4

[classifier]
min_episode_count = 2
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Matcher.EarlyExitConfidence != 0.9 {
		t.Fatalf("expected override, got %v", cfg.Matcher.EarlyExitConfidence)
	}
	if cfg.Matcher.AutoAcceptFloor != 0.8 {
		t.Fatalf("expected override, got %v", cfg.Matcher.AutoAcceptFloor)
	}
	if cfg.Matcher.Workers != 4 {
		t.Fatalf("expected override, got %d", cfg.Matcher.Workers)
	}
	if cfg.Classifier.MinEpisodeCount != 2 {
		t.Fatalf("expected override, got %d", cfg.Classifier.MinEpisodeCount)
	}
	// Untouched sections keep defaults.
	if cfg.Matcher.VoteFloor != 0.6 {
		t.Fatalf("expected default vote floor, got %v", cfg.Matcher.VoteFloor)
	}
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	cases := map[string]string{
		"vote floor out of range": `
[matcher]
vote_floor = 1.5
`,
		"episode band inverted": `
[classifier]
episode_min_seconds = 4200
episode_max_seconds = 1080
`,
		"heartbeat timeout below interval": `
[workflow]
heartbeat_interval = 60
heartbeat_timeout = 30
`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, contents)
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestMetricWeightsNormalized(t *testing.T) {
	path := writeConfig(t, `
[matcher]
token_sort_weight = 7.0
partial_weight = 3.0
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sum := cfg.Matcher.TokenSortWeight + cfg.Matcher.PartialWeight
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("expected normalized weights, got sum %v", sum)
	}
	if cfg.Matcher.TokenSortWeight < 0.69 || cfg.Matcher.TokenSortWeight > 0.71 {
		t.Fatalf("expected token sort weight near 0.7, got %v", cfg.Matcher.TokenSortWeight)
	}
}

func TestSubtitleLanguagesNormalized(t *testing.T) {
	path := writeConfig(t, `
[subtitles]
languages = ["EN", " en ", "", "De"]
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := strings.Join(cfg.Subtitles.Languages, ",")
	if got != "en,de" {
		t.Fatalf("expected deduplicated lowercase languages, got %q", got)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	expanded, err := config.ExpandPath("~/library")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if expanded != filepath.Join(home, "library") {
		t.Fatalf("expected home expansion, got %q", expanded)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Matcher.ChunkSeconds != 30 {
		t.Fatalf("sample should carry defaults, got %d", cfg.Matcher.ChunkSeconds)
	}
}
