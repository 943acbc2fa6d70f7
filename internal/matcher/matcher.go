package matcher

import (
	"context"
	"log/slog"
	"sort"

	"engram/internal/config"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/similarity"
	"engram/internal/subtitles"
)

// Chunk is one sampled audio window of a ripped title.
type Chunk struct {
	StartSeconds  int
	LengthSeconds int
}

// Transcriber turns one audio window of a ripped file into text.
// A failed chunk returns an error and is excluded from coverage entirely.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, chunk Chunk) (string, error)
}

// Verdict is the outcome of matching a single ripped title against the
// reference index. An empty Episode means the title could not be resolved.
type Verdict struct {
	Episode      string
	Confidence   float64
	VoteCount    int
	FileCoverage float64
	ScoreGap     float64
	RunnerUps    []job.RunnerUp
	Accepted     bool
	NeedsReview  bool
	Reason       string
}

// Details converts the verdict evidence into the persisted form.
func (v *Verdict) Details() *job.MatchDetails {
	return &job.MatchDetails{
		VoteCount:    v.VoteCount,
		FileCoverage: v.FileCoverage,
		ScoreGap:     v.ScoreGap,
		RunnerUps:    v.RunnerUps,
	}
}

// Matcher identifies which reference episode a ripped title contains by
// transcribing sampled audio chunks and voting on subtitle similarity.
type Matcher struct {
	cfg         config.Matcher
	index       *subtitles.ReferenceIndex
	transcriber Transcriber
	logger      *slog.Logger
}

// New constructs a Matcher over the given reference index.
func New(cfg config.Matcher, index *subtitles.ReferenceIndex, transcriber Transcriber, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{
		cfg:         cfg,
		index:       index,
		transcriber: transcriber,
		logger:      logging.NewComponentLogger(logger, "matcher"),
	}
}

// tally accumulates voting evidence for one candidate episode.
type tally struct {
	episode    string
	voteCount  int
	confidence float64
}

func (t *tally) average() float64 {
	if t.voteCount == 0 {
		return 0
	}
	return t.confidence / float64(t.voteCount)
}

// PlanChunks selects the audio windows to sample for a title of the given
// runtime. Short titles are sampled densely; long ones keep every Nth window
// so runtime cost stays flat regardless of title length.
func (m *Matcher) PlanChunks(durationSeconds int) []Chunk {
	if m.cfg.ChunkSeconds <= 0 {
		return nil
	}
	var all []Chunk
	for start := m.cfg.StartOffsetSeconds; start+m.cfg.ChunkSeconds <= durationSeconds; start += m.cfg.ChunkSeconds {
		all = append(all, Chunk{StartSeconds: start, LengthSeconds: m.cfg.ChunkSeconds})
	}
	if durationSeconds <= m.cfg.DenseRuntimeSeconds || m.cfg.SparseStride <= 1 {
		return all
	}
	var sparse []Chunk
	for i, chunk := range all {
		if i%m.cfg.SparseStride == 0 {
			sparse = append(sparse, chunk)
		}
	}
	return sparse
}

// Identify matches the ripped file at path against the reference index.
// It returns a nil error even when no episode could be resolved; only a
// cancelled context produces an error.
func (m *Matcher) Identify(ctx context.Context, path string, durationSeconds int) (*Verdict, error) {
	chunks := m.PlanChunks(durationSeconds)
	if len(chunks) == 0 || m.index.Len() == 0 {
		return m.unresolved("no sampleable chunks or empty reference index"), nil
	}

	m.logger.Info("matching title",
		logging.Args(
			logging.String("path", path),
			logging.Int("duration_seconds", durationSeconds),
			logging.Int("planned_chunks", len(chunks)),
			logging.Int("reference_episodes", m.index.Len()),
		)...)

	tallies := make(map[string]*tally, m.index.Len())
	counted := 0
	earlyExit := false

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := m.transcriber.Transcribe(ctx, path, chunk)
		if err != nil {
			m.logger.Warn("chunk transcription failed",
				logging.Args(
					logging.Int("chunk_start", chunk.StartSeconds),
					logging.Error(err),
				)...)
			continue
		}
		counted++

		episode, score := m.bestEpisode(text, chunk)
		if episode == "" || score <= m.cfg.VoteFloor {
			continue
		}
		entry := tallies[episode]
		if entry == nil {
			entry = &tally{episode: episode}
			tallies[episode] = entry
		}
		entry.voteCount++
		entry.confidence += score

		m.logger.Debug("chunk vote",
			logging.Args(
				logging.Int("chunk_start", chunk.StartSeconds),
				logging.String("episode", episode),
				logging.Float64("score", score),
			)...)

		if entry.voteCount >= m.cfg.EarlyExitMinVotes && entry.average() >= m.cfg.EarlyExitConfidence {
			earlyExit = true
			break
		}
	}

	verdict := m.rank(tallies, counted)
	if verdict.Episode != "" {
		m.logger.Info("match verdict",
			logging.Args(
				logging.String("episode", verdict.Episode),
				logging.Float64("confidence", verdict.Confidence),
				logging.Int("votes", verdict.VoteCount),
				logging.Float64("coverage", verdict.FileCoverage),
				logging.Float64("score_gap", verdict.ScoreGap),
				logging.Bool("accepted", verdict.Accepted),
				logging.Bool("early_exit", earlyExit),
			)...)
	} else {
		m.logger.Info("no episode resolved",
			logging.Args(
				logging.Int("chunks_counted", counted),
				logging.String("reason", verdict.Reason),
			)...)
	}
	return verdict, nil
}

// bestEpisode scores one transcript against every reference episode's
// subtitle window around the chunk position and returns the strongest one.
func (m *Matcher) bestEpisode(transcript string, chunk Chunk) (string, float64) {
	if len(similarity.Tokens(transcript)) == 0 {
		return "", 0
	}
	start := float64(chunk.StartSeconds)
	end := float64(chunk.StartSeconds + chunk.LengthSeconds)
	slack := float64(m.cfg.AlignmentSlack)

	best := ""
	bestScore := 0.0
	for _, code := range m.index.EpisodeCodes() {
		window := m.index.WindowText(code, start, end, slack)
		if window == "" {
			continue
		}
		score := similarity.Blended(transcript, window, m.cfg.TokenSortWeight, m.cfg.PartialWeight)
		if score > bestScore {
			best = code
			bestScore = score
		}
	}
	return best, bestScore
}

// rank orders the candidate tallies by weighted score and builds the verdict.
// The weighted score is average chunk confidence scaled by file coverage, so
// an episode matched by many chunks beats one matched strongly only once.
// Acceptance thresholds apply to the winner's average confidence, not the
// weighted score.
func (m *Matcher) rank(tallies map[string]*tally, counted int) *Verdict {
	if counted == 0 {
		return m.unresolved("no chunks transcribed")
	}
	if len(tallies) == 0 {
		return m.unresolved("no chunk cleared the vote floor")
	}

	ranked := make([]*tally, 0, len(tallies))
	for _, t := range tallies {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si := ranked[i].average() * coverageFor(ranked[i], counted)
		sj := ranked[j].average() * coverageFor(ranked[j], counted)
		if si != sj {
			return si > sj
		}
		if ranked[i].voteCount != ranked[j].voteCount {
			return ranked[i].voteCount > ranked[j].voteCount
		}
		return ranked[i].episode < ranked[j].episode
	})

	winner := ranked[0]
	verdict := &Verdict{
		Episode:      winner.episode,
		Confidence:   winner.average(),
		VoteCount:    winner.voteCount,
		FileCoverage: coverageFor(winner, counted),
	}

	if len(ranked) > 1 {
		verdict.ScoreGap = winner.average() - ranked[1].average()
		if verdict.ScoreGap < 0 {
			verdict.ScoreGap = 0
		}
	} else {
		verdict.ScoreGap = winner.average()
	}

	limit := m.cfg.MaxRunnerUps
	for _, t := range ranked[1:] {
		if limit <= 0 {
			break
		}
		verdict.RunnerUps = append(verdict.RunnerUps, job.RunnerUp{
			Episode:    t.episode,
			Confidence: t.average(),
			VoteCount:  t.voteCount,
		})
		limit--
	}

	verdict.Accepted = verdict.Confidence >= m.cfg.AutoAcceptFloor &&
		verdict.VoteCount >= m.cfg.AutoAcceptMinVotes &&
		verdict.ScoreGap >= m.cfg.ScoreGapMargin
	if !verdict.Accepted {
		verdict.NeedsReview = true
		switch {
		case verdict.Confidence < m.cfg.AutoAcceptFloor:
			verdict.Reason = "confidence below auto-accept floor"
		case verdict.VoteCount < m.cfg.AutoAcceptMinVotes:
			verdict.Reason = "insufficient votes"
		default:
			verdict.Reason = "score gap too narrow"
		}
	}
	if verdict.Confidence < m.cfg.PresentationFloor {
		verdict.Episode = ""
		verdict.Accepted = false
		verdict.NeedsReview = true
		verdict.Reason = "no candidate above presentation floor"
	}
	return verdict
}

// coverageFor is the per-candidate coverage fraction used for ranking:
// the share of transcribed chunks that voted for this episode.
func coverageFor(t *tally, counted int) float64 {
	if counted == 0 {
		return 0
	}
	return float64(t.voteCount) / float64(counted)
}

func (m *Matcher) unresolved(reason string) *Verdict {
	return &Verdict{NeedsReview: true, Reason: reason}
}
