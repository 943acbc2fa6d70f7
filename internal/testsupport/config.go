package testsupport

import (
	"path/filepath"
	"testing"

	"engram/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReviewDir = filepath.Join(base, "review")
	cfg.Paths.SubtitleCacheDir = filepath.Join(base, "subtitles")
	cfg.Paths.DatabasePath = filepath.Join(base, "engram.db")
	cfg.TMDB.APIKey = "test"
	cfg.API.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDrives overrides the monitored drive device list.
func WithDrives(devices ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Drive.Devices = devices
	}
}
