package config

const (
	defaultStagingDir       = "~/.local/share/engram/staging"
	defaultLibraryDir       = "~/library"
	defaultLogDir           = "~/.local/share/engram/logs"
	defaultReviewDir        = "~/review"
	defaultSubtitleCacheDir = "~/.local/share/engram/cache/subtitles"
	defaultDatabasePath     = "~/.local/share/engram/engram.db"
	defaultOpticalDrive     = "/dev/sr0"
	defaultMakemkvBinary    = "makemkvcon"
	defaultRipTimeout       = 7200
	defaultAPIBind          = "127.0.0.1:7489"
	defaultMoviesDir        = "movies"
	defaultTVDir            = "tv"
	defaultTMDBLanguage     = "en-US"
	defaultTMDBBaseURL      = "https://api.themoviedb.org/3"
	defaultWhisperBinary    = "whisper"
	defaultWhisperModel     = "base.en"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
)

// Default returns a Config populated with repository defaults.
//
// Classifier and matcher thresholds carry the production tuning values; all
// of them remain overridable since the sampling constants are still being
// experimented with in the field.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:       defaultStagingDir,
			LibraryDir:       defaultLibraryDir,
			LogDir:           defaultLogDir,
			ReviewDir:        defaultReviewDir,
			SubtitleCacheDir: defaultSubtitleCacheDir,
			DatabasePath:     defaultDatabasePath,
		},
		Drive: Drive{
			Devices:         []string{defaultOpticalDrive},
			EjectOnComplete: true,
			MonitorTimeout:  5,
			MakemkvBinary:   defaultMakemkvBinary,
			RipTimeout:      defaultRipTimeout,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		TMDB: TMDB{
			Language: defaultTMDBLanguage,
			BaseURL:  defaultTMDBBaseURL,
		},
		Library: Library{
			MoviesDir: defaultMoviesDir,
			TVDir:     defaultTVDir,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Identification: true,
			Rip:            true,
			Matching:       true,
			Organization:   true,
			Review:         true,
			Errors:         true,
		},
		Subtitles: Subtitles{
			Enabled:         true,
			Languages:       []string{"en"},
			DownloadTimeout: 120,
			WhisperBinary:   defaultWhisperBinary,
			WhisperModel:    defaultWhisperModel,
		},
		Classifier: Classifier{
			MovieMinSeconds:        4800,
			EpisodeMinSeconds:      1080,
			EpisodeMaxSeconds:      4200,
			MinEpisodeCount:        3,
			ClusterTolerance:       120,
			PilotTolerance:         420,
			PlayAllTolerance:       5,
			DominanceThreshold:     0.6,
			NameSimilarityMin:      0.35,
			MaxMovieCandidates:     3,
			SingleMovieConfidence:  0.9,
			WeakMovieConfidence:    0.75,
			EpisodeConfidenceBase:  0.5,
			EpisodeConfidenceStep:  0.1,
			EpisodeConfidenceLimit: 0.95,
		},
		Matcher: Matcher{
			ChunkSeconds:        30,
			StartOffsetSeconds:  60,
			DenseRuntimeSeconds: 900,
			SparseStride:        5,
			AlignmentSlack:      120,
			VoteFloor:           0.6,
			EarlyExitConfidence: 0.92,
			EarlyExitMinVotes:   3,
			AutoAcceptFloor:     0.85,
			AutoAcceptMinVotes:  3,
			ScoreGapMargin:      0.05,
			PresentationFloor:   0.5,
			TokenSortWeight:     0.7,
			PartialWeight:       0.3,
			Workers:             2,
			MaxRunnerUps:        3,
		},
		Workflow: Workflow{
			JobPollInterval:    5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  15,
			HeartbeatTimeout:   120,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
