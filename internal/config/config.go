package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir       string `toml:"staging_dir"`
	LibraryDir       string `toml:"library_dir"`
	LogDir           string `toml:"log_dir"`
	ReviewDir        string `toml:"review_dir"`
	SubtitleCacheDir string `toml:"subtitle_cache_dir"`
	DatabasePath     string `toml:"database_path"`
}

// Drive contains optical drive configuration.
type Drive struct {
	Devices         []string `toml:"devices"`
	EjectOnComplete bool     `toml:"eject_on_complete"`
	MonitorTimeout  int      `toml:"monitor_timeout"`
	MakemkvBinary   string   `toml:"makemkv_binary"`
	RipTimeout      int      `toml:"rip_timeout"`
}

// API contains the daemon control API listener settings.
type API struct {
	Bind string `toml:"bind"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Library contains configuration for the media library structure.
type Library struct {
	MoviesDir         string `toml:"movies_dir"`
	TVDir             string `toml:"tv_dir"`
	OverwriteExisting bool   `toml:"overwrite_existing"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Identification bool   `toml:"identification"`
	Rip            bool   `toml:"rip"`
	Matching       bool   `toml:"matching"`
	Organization   bool   `toml:"organization"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Subtitles contains configuration for reference subtitle retrieval.
type Subtitles struct {
	Enabled         bool     `toml:"enabled"`
	SourceDir       string   `toml:"source_dir"`
	Languages       []string `toml:"languages"`
	DownloadTimeout int      `toml:"download_timeout"`
	WhisperBinary   string   `toml:"whisper_binary"`
	WhisperModel    string   `toml:"whisper_model"`
}

// Classifier contains tuning thresholds for disc classification.
type Classifier struct {
	MovieMinSeconds        int     `toml:"movie_min_seconds"`
	EpisodeMinSeconds      int     `toml:"episode_min_seconds"`
	EpisodeMaxSeconds      int     `toml:"episode_max_seconds"`
	MinEpisodeCount        int     `toml:"min_episode_count"`
	ClusterTolerance       int     `toml:"cluster_tolerance_seconds"`
	PilotTolerance         int     `toml:"pilot_tolerance_seconds"`
	PlayAllTolerance       int     `toml:"play_all_tolerance_seconds"`
	DominanceThreshold     float64 `toml:"dominance_threshold"`
	NameSimilarityMin      float64 `toml:"name_similarity_min"`
	MaxMovieCandidates     int     `toml:"max_movie_candidates"`
	SingleMovieConfidence  float64 `toml:"single_movie_confidence"`
	WeakMovieConfidence    float64 `toml:"weak_movie_confidence"`
	EpisodeConfidenceBase  float64 `toml:"episode_confidence_base"`
	EpisodeConfidenceStep  float64 `toml:"episode_confidence_step"`
	EpisodeConfidenceLimit float64 `toml:"episode_confidence_limit"`
}

// Matcher contains tuning thresholds for episode identification.
type Matcher struct {
	ChunkSeconds        int     `toml:"chunk_seconds"`
	StartOffsetSeconds  int     `toml:"start_offset_seconds"`
	DenseRuntimeSeconds int     `toml:"dense_runtime_seconds"`
	SparseStride        int     `toml:"sparse_stride"`
	AlignmentSlack      int     `toml:"alignment_slack_seconds"`
	VoteFloor           float64 `toml:"vote_floor"`
	EarlyExitConfidence float64 `toml:"early_exit_confidence"`
	EarlyExitMinVotes   int     `toml:"early_exit_min_votes"`
	AutoAcceptFloor     float64 `toml:"auto_accept_floor"`
	AutoAcceptMinVotes  int     `toml:"auto_accept_min_votes"`
	ScoreGapMargin      float64 `toml:"score_gap_margin"`
	PresentationFloor   float64 `toml:"presentation_floor"`
	TokenSortWeight     float64 `toml:"token_sort_weight"`
	PartialWeight       float64 `toml:"partial_weight"`
	Workers             int     `toml:"workers"`
	MaxRunnerUps        int     `toml:"max_runner_ups"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	JobPollInterval    int `toml:"job_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Engram.
//
// Configuration sections by subsystem:
//   - Paths: staging, library, log, review, and database locations
//   - Drive: optical drive devices, MakeMKV binary, and eject behavior
//   - API: daemon control API bind address
//   - TMDB: metadata lookup via The Movie Database
//   - Library: output directory structure (movies/tv subdirs)
//   - Notifications: ntfy push notification settings
//   - Subtitles: reference subtitle retrieval and transcription tooling
//   - Classifier: disc classification thresholds
//   - Matcher: episode identification thresholds
//   - Workflow: daemon polling intervals and timeouts
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Drive         Drive         `toml:"drive"`
	API           API           `toml:"api"`
	TMDB          TMDB          `toml:"tmdb"`
	Library       Library       `toml:"library"`
	Notifications Notifications `toml:"notifications"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Classifier    Classifier    `toml:"classifier"`
	Matcher       Matcher       `toml:"matcher"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/engram/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/engram/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("engram.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.ReviewDir, c.Paths.SubtitleCacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.DatabasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
