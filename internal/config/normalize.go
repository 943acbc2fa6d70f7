package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDrive()
	c.normalizeTMDB()
	c.normalizeSubtitles()
	c.normalizeMatcher()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SubtitleCacheDir) == "" {
		c.Paths.SubtitleCacheDir = defaultSubtitleCacheDir
	}
	if c.Paths.SubtitleCacheDir, err = expandPath(c.Paths.SubtitleCacheDir); err != nil {
		return fmt.Errorf("paths.subtitle_cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDrive() {
	devices := make([]string, 0, len(c.Drive.Devices))
	seen := make(map[string]struct{}, len(c.Drive.Devices))
	for _, device := range c.Drive.Devices {
		trimmed := strings.TrimSpace(device)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		devices = append(devices, trimmed)
	}
	if len(devices) == 0 {
		devices = []string{defaultOpticalDrive}
	}
	c.Drive.Devices = devices
	if c.Drive.MonitorTimeout <= 0 {
		c.Drive.MonitorTimeout = 5
	}
	c.Drive.MakemkvBinary = strings.TrimSpace(c.Drive.MakemkvBinary)
	if c.Drive.MakemkvBinary == "" {
		c.Drive.MakemkvBinary = defaultMakemkvBinary
	}
	if c.Drive.RipTimeout < 0 {
		c.Drive.RipTimeout = 0
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.SourceDir = strings.TrimSpace(c.Subtitles.SourceDir)
	c.Subtitles.WhisperBinary = strings.TrimSpace(c.Subtitles.WhisperBinary)
	if c.Subtitles.WhisperBinary == "" {
		c.Subtitles.WhisperBinary = defaultWhisperBinary
	}
	c.Subtitles.WhisperModel = strings.TrimSpace(c.Subtitles.WhisperModel)
	if c.Subtitles.WhisperModel == "" {
		c.Subtitles.WhisperModel = defaultWhisperModel
	}
	if c.Subtitles.DownloadTimeout <= 0 {
		c.Subtitles.DownloadTimeout = 120
	}
	if len(c.Subtitles.Languages) == 0 {
		c.Subtitles.Languages = []string{"en"}
		return
	}
	langs := make([]string, 0, len(c.Subtitles.Languages))
	seen := make(map[string]struct{}, len(c.Subtitles.Languages))
	for _, lang := range c.Subtitles.Languages {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	c.Subtitles.Languages = langs
}

func (c *Config) normalizeMatcher() {
	defaults := Default().Matcher
	if c.Matcher.ChunkSeconds <= 0 {
		c.Matcher.ChunkSeconds = defaults.ChunkSeconds
	}
	if c.Matcher.SparseStride <= 0 {
		c.Matcher.SparseStride = defaults.SparseStride
	}
	if c.Matcher.Workers <= 0 {
		c.Matcher.Workers = defaults.Workers
	}
	if c.Matcher.MaxRunnerUps <= 0 {
		c.Matcher.MaxRunnerUps = defaults.MaxRunnerUps
	}
	// Keep the metric blend normalized so verdict confidences stay in [0,1].
	total := c.Matcher.TokenSortWeight + c.Matcher.PartialWeight
	if total <= 0 {
		c.Matcher.TokenSortWeight = defaults.TokenSortWeight
		c.Matcher.PartialWeight = defaults.PartialWeight
	} else if total != 1 {
		c.Matcher.TokenSortWeight /= total
		c.Matcher.PartialWeight /= total
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
