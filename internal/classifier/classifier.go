package classifier

import (
	"fmt"
	"log/slog"
	"sort"

	"engram/internal/config"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/similarity"
)

// Track describes a single disc title as enumerated by the ripper.
type Track struct {
	Index           int
	DurationSeconds int
	SizeBytes       int64
	ChapterCount    int
}

// Result is the classification verdict for one disc.
type Result struct {
	ContentType     job.ContentType
	Confidence      float64
	NeedsReview     bool
	Reason          string
	DetectedTitle   string
	DetectedSeason  int
	DetectedDisc    int
	SelectedIndices []int
	PlayAllIndices  []int
}

// ReviewReasonNameUndetected flags discs that produced no usable name.
const ReviewReasonNameUndetected = "name undetected"

// Classifier decides content type from track durations and the volume label.
// It never returns an error: anything it cannot classify confidently
// degrades to unknown with review required.
type Classifier struct {
	cfg    config.Classifier
	logger *slog.Logger
}

// New constructs a Classifier with the given thresholds.
func New(cfg config.Classifier, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Classifier{cfg: cfg, logger: logging.NewComponentLogger(logger, "classifier")}
}

// ExternalNameAccepted applies the token-overlap guard to a metadata-lookup
// candidate name. A candidate unrelated to the parsed label is rejected so
// a generic or mis-keyed lookup can never rename a disc. When either side
// has no comparable tokens the candidate is allowed through.
func (c *Classifier) ExternalNameAccepted(parsedName, candidate string) bool {
	if len(similarity.Tokens(parsedName)) == 0 || len(similarity.Tokens(candidate)) == 0 {
		return true
	}
	return similarity.TokenJaccard(parsedName, candidate) >= c.cfg.NameSimilarityMin
}

// Classify analyzes the track inventory and volume label.
func (c *Classifier) Classify(tracks []Track, volumeLabel string) Result {
	if len(tracks) == 0 {
		return Result{
			ContentType: job.ContentUnknown,
			NeedsReview: true,
			Reason:      "no titles found on disc",
		}
	}

	parsed := ParseVolumeLabel(volumeLabel)
	labelSaysTV := parsed.Season > 0
	c.logger.Debug("analyzing disc",
		logging.String("volume_label", volumeLabel),
		logging.Int("titles", len(tracks)),
		logging.String("detected_name", parsed.Name),
		logging.Int("detected_season", parsed.Season))

	movie := c.detectMovie(tracks)
	episodes := c.detectEpisodes(tracks)
	playAll := c.detectPlayAll(tracks, episodes)

	base := Result{
		DetectedTitle:  parsed.Name,
		DetectedSeason: parsed.Season,
		DetectedDisc:   parsed.Disc,
		PlayAllIndices: playAll,
	}

	switch {
	case movie != nil && !movie.ambiguous && len(episodes) > 0:
		// A clean movie plus an episode cluster is almost always a TV disc
		// whose feature-length title is the Play All concatenation.
		result := base
		result.ContentType = job.ContentTV
		result.Confidence = c.episodeConfidence(len(episodes))
		result.SelectedIndices = trackIndices(episodes)
		return c.finishNaming(result)

	case movie != nil && !movie.ambiguous && labelSaysTV && len(playAll) > 0:
		result := base
		result.ContentType = job.ContentTV
		result.Confidence = 0.75
		result.SelectedIndices = c.tvRangeIndices(tracks, playAll)
		return c.finishNaming(result)

	case movie != nil && !movie.ambiguous:
		result := base
		result.ContentType = job.ContentMovie
		result.Confidence = movie.confidence
		result.DetectedSeason = 0
		result.SelectedIndices = []int{movie.mainIndex}
		return c.finishNaming(result)

	case len(episodes) > 0:
		result := base
		result.ContentType = job.ContentTV
		result.Confidence = c.episodeConfidence(len(episodes))
		result.SelectedIndices = trackIndices(episodes)
		return c.finishNaming(result)

	case movie != nil && movie.ambiguous:
		result := base
		result.ContentType = job.ContentMovie
		result.NeedsReview = true
		result.Reason = movie.reason
		result.DetectedSeason = 0
		return result

	case labelSaysTV:
		result := base
		result.ContentType = job.ContentTV
		result.Confidence = 0.7
		result.SelectedIndices = c.tvRangeIndices(tracks, playAll)
		return c.finishNaming(result)
	}

	result := base
	result.ContentType = job.ContentUnknown
	result.NeedsReview = true
	result.Reason = c.ambiguityReason(tracks)
	return result
}

type movieDetection struct {
	confidence float64
	mainIndex  int
	ambiguous  bool
	reason     string
}

func (c *Classifier) detectMovie(tracks []Track) *movieDetection {
	var long []Track
	var total int
	for _, track := range tracks {
		total += track.DurationSeconds
		if track.DurationSeconds >= c.cfg.MovieMinSeconds {
			long = append(long, track)
		}
	}

	switch {
	case len(long) == 1:
		dominance := 0.0
		if total > 0 {
			dominance = float64(long[0].DurationSeconds) / float64(total)
		}
		confidence := c.cfg.WeakMovieConfidence
		if dominance >= c.cfg.DominanceThreshold {
			confidence = c.cfg.SingleMovieConfidence
		}
		return &movieDetection{confidence: confidence, mainIndex: long[0].Index}

	case len(long) > c.cfg.MaxMovieCandidates:
		return &movieDetection{
			ambiguous: true,
			reason:    fmt.Sprintf("found %d feature-length titles, possibly a multi-movie disc or compilation", len(long)),
		}

	case len(long) >= 2:
		return &movieDetection{
			ambiguous: true,
			reason:    fmt.Sprintf("found %d feature-length titles of similar length, select the correct edition", len(long)),
		}
	}
	return nil
}

// detectEpisodes greedily clusters TV-length tracks by duration and returns
// the dominant cluster, widened by the pilot tolerance so a longer opener
// is not split off from its season.
func (c *Classifier) detectEpisodes(tracks []Track) []Track {
	if len(tracks) < c.cfg.MinEpisodeCount {
		return nil
	}

	var tvLength []Track
	for _, track := range tracks {
		if track.DurationSeconds >= c.cfg.EpisodeMinSeconds && track.DurationSeconds <= c.cfg.EpisodeMaxSeconds {
			tvLength = append(tvLength, track)
		}
	}
	if len(tvLength) < c.cfg.MinEpisodeCount {
		return nil
	}

	var clusters [][]Track
	for _, track := range tvLength {
		placed := false
		for i, cluster := range clusters {
			if absInt(track.DurationSeconds-clusterAverage(cluster)) <= c.cfg.ClusterTolerance {
				clusters[i] = append(cluster, track)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []Track{track})
		}
	}

	var largest []Track
	for _, cluster := range clusters {
		if len(cluster) > len(largest) {
			largest = cluster
		}
	}
	if len(largest) < c.cfg.MinEpisodeCount {
		return nil
	}

	avg := clusterAverage(largest)
	selected := make(map[int]struct{}, len(largest))
	for _, track := range largest {
		selected[track.Index] = struct{}{}
	}
	episodes := append([]Track(nil), largest...)
	for _, track := range tvLength {
		if _, ok := selected[track.Index]; ok {
			continue
		}
		if absInt(track.DurationSeconds-avg) <= c.cfg.PilotTolerance {
			episodes = append(episodes, track)
		}
	}

	sort.Slice(episodes, func(i, j int) bool { return episodes[i].Index < episodes[j].Index })
	return episodes
}

// detectPlayAll flags feature-length tracks whose duration sits within a
// few seconds of the sum of a contiguous run of episode tracks. Such a
// track concatenates episodes and must never be selected as playable.
func (c *Classifier) detectPlayAll(tracks []Track, episodes []Track) []int {
	candidates := episodes
	if len(candidates) < 2 {
		candidates = nil
		for _, track := range tracks {
			if track.DurationSeconds >= c.cfg.EpisodeMinSeconds && track.DurationSeconds <= c.cfg.EpisodeMaxSeconds {
				candidates = append(candidates, track)
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Index < candidates[j].Index })
		if len(candidates) < 2 {
			return nil
		}
	}

	inCluster := make(map[int]struct{}, len(candidates))
	longestCandidate := 0
	for _, track := range candidates {
		inCluster[track.Index] = struct{}{}
		if track.DurationSeconds > longestCandidate {
			longestCandidate = track.DurationSeconds
		}
	}

	var playAll []int
	for _, track := range tracks {
		if _, ok := inCluster[track.Index]; ok {
			continue
		}
		// A concatenation of two or more episodes always outruns any
		// single episode in the cluster.
		if track.DurationSeconds <= longestCandidate {
			continue
		}
		if matchesContiguousSum(track.DurationSeconds, candidates, c.cfg.PlayAllTolerance) {
			playAll = append(playAll, track.Index)
			c.logger.Debug("detected play-all title",
				logging.Int("title_index", track.Index),
				logging.Int("duration_seconds", track.DurationSeconds))
		}
	}
	return playAll
}

func matchesContiguousSum(duration int, episodes []Track, tolerance int) bool {
	for start := 0; start < len(episodes); start++ {
		sum := 0
		for end := start; end < len(episodes); end++ {
			sum += episodes[end].DurationSeconds
			if end-start < 1 {
				continue
			}
			if absInt(duration-sum) <= tolerance {
				return true
			}
			if sum > duration+tolerance {
				break
			}
		}
	}
	return false
}

func (c *Classifier) episodeConfidence(count int) float64 {
	confidence := c.cfg.EpisodeConfidenceBase + float64(count)*c.cfg.EpisodeConfidenceStep
	if confidence > c.cfg.EpisodeConfidenceLimit {
		confidence = c.cfg.EpisodeConfidenceLimit
	}
	return confidence
}

func (c *Classifier) tvRangeIndices(tracks []Track, playAll []int) []int {
	excluded := make(map[int]struct{}, len(playAll))
	for _, index := range playAll {
		excluded[index] = struct{}{}
	}
	var indices []int
	for _, track := range tracks {
		if _, ok := excluded[track.Index]; ok {
			continue
		}
		if track.DurationSeconds >= c.cfg.EpisodeMinSeconds && track.DurationSeconds <= c.cfg.EpisodeMaxSeconds {
			indices = append(indices, track.Index)
		}
	}
	return indices
}

// finishNaming enforces the naming precondition: a disc without a usable
// title never proceeds to ripping.
func (c *Classifier) finishNaming(result Result) Result {
	if result.DetectedTitle == "" {
		result.NeedsReview = true
		result.Reason = ReviewReasonNameUndetected
	}
	return result
}

func (c *Classifier) ambiguityReason(tracks []Track) string {
	var long int
	minDur, maxDur := tracks[0].DurationSeconds, tracks[0].DurationSeconds
	for _, track := range tracks {
		if track.DurationSeconds >= c.cfg.MovieMinSeconds {
			long++
		}
		if track.DurationSeconds < minDur {
			minDur = track.DurationSeconds
		}
		if track.DurationSeconds > maxDur {
			maxDur = track.DurationSeconds
		}
	}
	if long >= 2 {
		return fmt.Sprintf("multiple long titles found (%d over %d min), could be a multi-movie disc", long, c.cfg.MovieMinSeconds/60)
	}
	if len(tracks) < c.cfg.MinEpisodeCount {
		return fmt.Sprintf("only %d title(s) found, not enough to determine tv or movie", len(tracks))
	}
	return fmt.Sprintf("inconsistent title durations (%d-%d min), unable to classify", minDur/60, maxDur/60)
}

func clusterAverage(cluster []Track) int {
	if len(cluster) == 0 {
		return 0
	}
	sum := 0
	for _, track := range cluster {
		sum += track.DurationSeconds
	}
	return sum / len(cluster)
}

func trackIndices(tracks []Track) []int {
	indices := make([]int, 0, len(tracks))
	for _, track := range tracks {
		indices = append(indices, track.Index)
	}
	return indices
}

func absInt(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
