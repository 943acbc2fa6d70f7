package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"engram/internal/classifier"
	"engram/internal/events"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/matcher"
	"engram/internal/services"
	"engram/internal/services/tmdb"
	"engram/internal/subtitles"
)

// errParkedForReview stops a pipeline run without failing the job; the job
// sits in review_needed until a caller resolves it.
var errParkedForReview = errors.New("job parked for review")

func jobIDDirName(id int64) string {
	return fmt.Sprintf("job-%d", id)
}

func (m *Manager) runJob(ctx context.Context, j *job.DiscJob) {
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	ctx = services.WithJobID(ctx, j.ID)
	ctx = services.WithDriveID(ctx, j.DriveID)
	logger := logging.WithContext(ctx, m.logger)

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeatLoop(hbCtx, &hbWG, j.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	start := time.Now()
	err := m.runPipeline(ctx, logger, j)
	switch {
	case err == nil:
		logger.Info("job completed",
			logging.Args(
				logging.String(logging.FieldEventType, "job_complete"),
				logging.Duration("elapsed", time.Since(start)),
			)...)
	case errors.Is(err, errParkedForReview):
		logger.Info("job awaiting review",
			logging.Args(
				logging.String(logging.FieldEventType, "job_review"),
				logging.String("review_reason", j.ReviewReason),
			)...)
	case errors.Is(err, context.Canceled):
		m.failCancelledJob(j, logger)
	default:
		m.setLastError(err)
		m.failJob(ctx, logger, j, err)
	}
}

// runPipeline advances the job from its current state to a terminal or
// parked state. Idle jobs run identification first; ripping jobs are review
// resolutions re-entering with pending titles.
func (m *Manager) runPipeline(ctx context.Context, logger *slog.Logger, j *job.DiscJob) error {
	if j.State == job.StateIdle {
		if err := m.identify(ctx, logger, j); err != nil {
			return err
		}
	}
	if err := m.ripAndMatch(ctx, logger, j); err != nil {
		return err
	}
	return m.organize(ctx, logger, j)
}

func (m *Manager) identify(ctx context.Context, logger *slog.Logger, j *job.DiscJob) error {
	if err := m.transitionJob(ctx, j, job.StateIdentifying, ""); err != nil {
		return err
	}

	tracks, err := m.deps.Ripper.Scan(ctx, j.DriveID)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "identifying", "scan disc", "", err)
	}
	result := m.classifier.Classify(tracks, j.VolumeLabel)

	j.ContentType = result.ContentType
	j.DetectedTitle = result.DetectedTitle
	j.DetectedSeason = result.DetectedSeason
	m.confirmName(ctx, logger, j, result.DetectedTitle)

	parking := result.NeedsReview || j.DetectedTitle == ""
	if err := m.insertTitles(ctx, j, tracks, result, parking); err != nil {
		return err
	}

	logger.Info("disc classified",
		logging.Args(
			logging.String("content_type", string(j.ContentType)),
			logging.Float64("confidence", result.Confidence),
			logging.String("detected_title", j.DetectedTitle),
			logging.Int("detected_season", j.DetectedSeason),
			logging.Int("selected_titles", len(j.SelectedTitles())),
			logging.Bool("needs_review", result.NeedsReview),
		)...)

	if parking {
		reason := result.Reason
		if reason == "" {
			reason = "classification ambiguous"
		}
		return m.parkForReview(ctx, j, reason)
	}

	if err := m.deps.Notifier.NotifyIdentificationComplete(ctx, j.DetectedTitle, string(j.ContentType)); err != nil {
		logger.Warn("identification notification failed", logging.Error(err))
	}
	return nil
}

// confirmName runs the optional metadata lookup and adopts the candidate
// only when it survives the classifier's token-overlap guard.
func (m *Manager) confirmName(ctx context.Context, logger *slog.Logger, j *job.DiscJob, parsedName string) {
	if m.deps.Metadata == nil || parsedName == "" {
		return
	}
	candidate, err := tmdb.BestName(ctx, m.deps.Metadata, parsedName, j.ContentType == job.ContentTV)
	if err != nil {
		logger.Warn("metadata lookup failed", logging.Error(err))
		return
	}
	if candidate == "" || candidate == parsedName {
		return
	}
	if !m.classifier.ExternalNameAccepted(parsedName, candidate) {
		logger.Info("metadata candidate rejected by name guard",
			logging.Args(
				logging.String("parsed_name", parsedName),
				logging.String("candidate", candidate),
			)...)
		return
	}
	logger.Info("disc name confirmed by metadata lookup",
		logging.Args(
			logging.String("parsed_name", parsedName),
			logging.String("confirmed_name", candidate),
		)...)
	j.DetectedTitle = candidate
}

// insertTitles persists the classifier's selected tracks as the job's work
// items. A job headed for review keeps the rest of the enumerated tracks
// too, unselected, so a review resolution can pick among them. Play-all
// concatenations are never persisted.
func (m *Manager) insertTitles(ctx context.Context, j *job.DiscJob, tracks []classifier.Track, result classifier.Result, parking bool) error {
	selectedSet := make(map[int]struct{}, len(result.SelectedIndices))
	for _, index := range result.SelectedIndices {
		selectedSet[index] = struct{}{}
	}
	playAllSet := make(map[int]struct{}, len(result.PlayAllIndices))
	for _, index := range result.PlayAllIndices {
		playAllSet[index] = struct{}{}
	}
	now := time.Now().UTC()
	for _, track := range tracks {
		_, isSelected := selectedSet[track.Index]
		if !isSelected {
			if !parking {
				continue
			}
			if _, ok := playAllSet[track.Index]; ok {
				continue
			}
		}
		title := &job.DiscTitle{
			JobID:           j.ID,
			TitleIndex:      track.Index,
			DurationSeconds: track.DurationSeconds,
			FileSizeBytes:   track.SizeBytes,
			IsSelected:      isSelected,
			State:           job.TitlePending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := m.store.InsertTitle(ctx, title); err != nil {
			return fmt.Errorf("insert title %d: %w", track.Index, err)
		}
		j.Titles = append(j.Titles, title)
	}
	return nil
}

func (m *Manager) ripAndMatch(ctx context.Context, logger *slog.Logger, j *job.DiscJob) error {
	if err := m.transitionJob(ctx, j, job.StateRipping, ""); err != nil {
		return err
	}
	destDir := m.stagingDir(j.ID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	var barrier *SubtitleBarrier
	if j.ContentType == job.ContentTV {
		barrier = NewSubtitleBarrier()
		m.wg.Add(1)
		go m.fetchSubtitles(ctx, logger, j, barrier)
	}

	var matchWG sync.WaitGroup
	ripped := 0
	for _, title := range j.Titles {
		if title.State != job.TitlePending || !title.IsSelected {
			continue
		}
		if err := ctx.Err(); err != nil {
			matchWG.Wait()
			return err
		}
		path, err := m.ripTitle(ctx, logger, j, title, destDir)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				matchWG.Wait()
				return err
			}
			continue
		}
		ripped++
		if j.ContentType == job.ContentTV {
			matchWG.Add(1)
			go func(t *job.DiscTitle, ripPath string) {
				defer matchWG.Done()
				m.matchTitle(ctx, logger, j, t, barrier, ripPath)
			}(title, path)
		}
	}

	if j.ContentType == job.ContentTV {
		if err := m.transitionJob(ctx, j, job.StateMatching, ""); err != nil {
			matchWG.Wait()
			return err
		}
		matchWG.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ripped == 0 {
		return services.Wrap(services.ErrExternalTool, "ripping", "rip titles", "every selected title failed to rip", nil)
	}
	return nil
}

func (m *Manager) ripTitle(ctx context.Context, logger *slog.Logger, j *job.DiscJob, title *job.DiscTitle, destDir string) (string, error) {
	if err := m.transitionTitle(ctx, j, title, job.TitleRipping); err != nil {
		return "", err
	}
	if err := m.deps.Notifier.NotifyRipStarted(ctx, j.DetectedTitle); err != nil {
		logger.Warn("rip started notification failed", logging.Error(err))
	}

	path, err := m.deps.Ripper.Rip(ctx, j.DriveID, title, destDir)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		logger.Error("title rip failed",
			logging.Args(
				logging.Int64(logging.FieldTitleID, title.ID),
				logging.Int("title_index", title.TitleIndex),
				logging.Error(err),
			)...)
		m.failTitle(ctx, j, title, fmt.Sprintf("rip failed: %v", err))
		return "", err
	}

	title.OutputFilename = filepath.Base(path)
	if err := m.store.UpdateTitle(ctx, title); err != nil {
		logger.Error("failed to persist ripped title", logging.Error(err))
	}
	logger.Info("title ripped",
		logging.Args(
			logging.Int("title_index", title.TitleIndex),
			logging.String("output_file", title.OutputFilename),
		)...)
	if err := m.deps.Notifier.NotifyRipCompleted(ctx, j.DetectedTitle); err != nil {
		logger.Warn("rip completed notification failed", logging.Error(err))
	}
	return path, nil
}

// fetchSubtitles is the background barrier task. It signals the barrier
// exactly once with either a built reference index or the fetch error.
func (m *Manager) fetchSubtitles(ctx context.Context, logger *slog.Logger, j *job.DiscJob, barrier *SubtitleBarrier) {
	defer m.wg.Done()
	if m.deps.Subtitles == nil {
		barrier.Signal(nil, services.Wrap(services.ErrConfiguration, "matching", "fetch subtitles", "no subtitle source configured", nil))
		return
	}
	dir, err := m.deps.Subtitles.Fetch(ctx, j.DetectedTitle, j.DetectedSeason)
	if err != nil {
		logger.Warn("subtitle fetch failed; matching will route to review", logging.Error(err))
		barrier.Signal(nil, err)
		return
	}
	index, err := subtitles.LoadReferenceIndex(dir, j.DetectedTitle, j.DetectedSeason)
	if err != nil {
		logger.Warn("reference index build failed", logging.Error(err))
		barrier.Signal(nil, err)
		return
	}
	logger.Info("reference index ready",
		logging.Args(
			logging.Int("episodes", index.Len()),
			logging.Int("season", j.DetectedSeason),
		)...)
	barrier.Signal(index, nil)
}

// matchTitle identifies one ripped title. It blocks on the subtitle barrier
// and then on a matching worker slot before transcribing.
func (m *Manager) matchTitle(ctx context.Context, logger *slog.Logger, j *job.DiscJob, title *job.DiscTitle, barrier *SubtitleBarrier, path string) {
	if err := m.transitionTitle(ctx, j, title, job.TitleMatching); err != nil {
		return
	}

	index, err := barrier.Wait(ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}
	if err != nil || index == nil || index.Len() == 0 {
		m.reviewTitle(ctx, logger, j, title, "", "reference subtitles unavailable")
		return
	}

	if err := m.matchSlots.Acquire(ctx, 1); err != nil {
		return
	}
	defer m.matchSlots.Release(1)

	eng := matcher.New(m.cfg.Matcher, index, m.deps.Transcriber, m.logger)
	verdict, err := eng.Identify(ctx, path, title.DurationSeconds)
	if err != nil {
		// Identify only errors on cancellation.
		return
	}

	if err := title.SetMatch(verdict.Episode, verdict.Confidence, verdict.Details(), verdict.Accepted); err != nil {
		logger.Error("failed to record match", logging.Error(err))
		return
	}
	if verdict.NeedsReview {
		title.ErrorMessage = verdict.Reason
	}
	if err := m.store.UpdateTitle(ctx, title); err != nil {
		logger.Error("failed to persist match verdict", logging.Error(err))
	}
	m.publishTitle(j, title)

	if verdict.Accepted {
		logger.Info("episode matched",
			logging.Args(
				logging.String(logging.FieldEpisodeCode, verdict.Episode),
				logging.Float64("confidence", verdict.Confidence),
				logging.Int("votes", verdict.VoteCount),
				logging.Float64("score_gap", verdict.ScoreGap),
			)...)
		if err := m.deps.Notifier.NotifyEpisodeMatched(ctx, j.DetectedTitle, verdict.Episode, verdict.Confidence); err != nil {
			logger.Warn("match notification failed", logging.Error(err))
		}
		return
	}
	logger.Info("match needs review",
		logging.Args(
			logging.String(logging.FieldEpisodeCode, verdict.Episode),
			logging.Float64("confidence", verdict.Confidence),
			logging.String("reason", verdict.Reason),
		)...)
	if err := m.deps.Notifier.NotifyMatchReview(ctx, j.DetectedTitle, verdict.Episode, verdict.Reason); err != nil {
		logger.Warn("match review notification failed", logging.Error(err))
	}
}

func (m *Manager) organize(ctx context.Context, logger *slog.Logger, j *job.DiscJob) error {
	if err := m.transitionJob(ctx, j, job.StateOrganizing, ""); err != nil {
		return err
	}

	var placeErr error
	for _, title := range j.Titles {
		if err := ctx.Err(); err != nil {
			return err
		}
		var target job.TitleState
		switch title.State {
		case job.TitleMatched, job.TitleRipping:
			target = job.TitleCompleted
		case job.TitleReview:
			// Review titles are parked in the review directory and keep
			// their state for the human picker.
			target = job.TitleReview
		default:
			continue
		}
		if title.OutputFilename == "" {
			continue
		}

		finalPath, err := m.deps.Organizer.Place(ctx, j, title, m.titlePath(j.ID, title))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error("title organization failed",
				logging.Args(
					logging.Int("title_index", title.TitleIndex),
					logging.Error(err),
				)...)
			m.failTitle(ctx, j, title, fmt.Sprintf("organize failed: %v", err))
			if placeErr == nil {
				placeErr = err
			}
			continue
		}
		if target == job.TitleCompleted {
			if err := m.transitionTitle(ctx, j, title, job.TitleCompleted); err != nil {
				continue
			}
		}
		if err := m.deps.Notifier.NotifyOrganizationCompleted(ctx, j.DetectedTitle, finalPath); err != nil {
			logger.Warn("organization notification failed", logging.Error(err))
		}
	}

	if placeErr != nil {
		return services.Wrap(services.ErrExternalTool, "organizing", "place titles", "", placeErr)
	}
	return m.completeJob(ctx, logger, j)
}

func (m *Manager) completeJob(ctx context.Context, logger *slog.Logger, j *job.DiscJob) error {
	if err := m.transitionJob(ctx, j, job.StateCompleted, ""); err != nil {
		return err
	}
	if err := m.deps.Notifier.NotifyJobCompleted(ctx, j.DetectedTitle); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
	if m.cfg.Drive.EjectOnComplete && m.deps.Ejector != nil {
		if err := m.deps.Ejector.Eject(j.DriveID); err != nil {
			logger.Warn("disc eject failed", logging.Error(err))
		} else {
			m.deps.Hub.Publish(events.Event{
				Type:    events.TypeDiscEjected,
				JobID:   j.ID,
				DriveID: j.DriveID,
			})
		}
	}
	return nil
}
