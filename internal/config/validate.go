package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateMatcher(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if c.Library.MoviesDir == "" {
		return errors.New("library.movies_dir must be set")
	}
	if c.Library.TVDir == "" {
		return errors.New("library.tv_dir must be set")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	cfg := c.Classifier
	if err := ensurePositiveMap(map[string]int{
		"classifier.movie_min_seconds":          cfg.MovieMinSeconds,
		"classifier.episode_min_seconds":        cfg.EpisodeMinSeconds,
		"classifier.episode_max_seconds":        cfg.EpisodeMaxSeconds,
		"classifier.min_episode_count":          cfg.MinEpisodeCount,
		"classifier.cluster_tolerance_seconds":  cfg.ClusterTolerance,
		"classifier.pilot_tolerance_seconds":    cfg.PilotTolerance,
		"classifier.play_all_tolerance_seconds": cfg.PlayAllTolerance,
		"classifier.max_movie_candidates":       cfg.MaxMovieCandidates,
	}); err != nil {
		return err
	}
	if cfg.EpisodeMinSeconds >= cfg.EpisodeMaxSeconds {
		return errors.New("classifier.episode_min_seconds must be less than classifier.episode_max_seconds")
	}
	if err := ensureUnitIntervalMap(map[string]float64{
		"classifier.dominance_threshold":      cfg.DominanceThreshold,
		"classifier.name_similarity_min":      cfg.NameSimilarityMin,
		"classifier.single_movie_confidence":  cfg.SingleMovieConfidence,
		"classifier.weak_movie_confidence":    cfg.WeakMovieConfidence,
		"classifier.episode_confidence_base":  cfg.EpisodeConfidenceBase,
		"classifier.episode_confidence_step":  cfg.EpisodeConfidenceStep,
		"classifier.episode_confidence_limit": cfg.EpisodeConfidenceLimit,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMatcher() error {
	cfg := c.Matcher
	if err := ensurePositiveMap(map[string]int{
		"matcher.chunk_seconds":           cfg.ChunkSeconds,
		"matcher.dense_runtime_seconds":   cfg.DenseRuntimeSeconds,
		"matcher.sparse_stride":           cfg.SparseStride,
		"matcher.alignment_slack_seconds": cfg.AlignmentSlack,
		"matcher.early_exit_min_votes":    cfg.EarlyExitMinVotes,
		"matcher.auto_accept_min_votes":   cfg.AutoAcceptMinVotes,
		"matcher.workers":                 cfg.Workers,
		"matcher.max_runner_ups":          cfg.MaxRunnerUps,
	}); err != nil {
		return err
	}
	if cfg.StartOffsetSeconds < 0 {
		return errors.New("matcher.start_offset_seconds must be >= 0")
	}
	if err := ensureUnitIntervalMap(map[string]float64{
		"matcher.vote_floor":            cfg.VoteFloor,
		"matcher.early_exit_confidence": cfg.EarlyExitConfidence,
		"matcher.auto_accept_floor":     cfg.AutoAcceptFloor,
		"matcher.score_gap_margin":      cfg.ScoreGapMargin,
		"matcher.presentation_floor":    cfg.PresentationFloor,
	}); err != nil {
		return err
	}
	if cfg.AutoAcceptFloor < cfg.PresentationFloor {
		return errors.New("matcher.auto_accept_floor must not be below matcher.presentation_floor")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"drive.monitor_timeout":         c.Drive.MonitorTimeout,
		"workflow.job_poll_interval":    c.Workflow.JobPollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensureUnitIntervalMap(values map[string]float64) error {
	for key, value := range values {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	return nil
}
