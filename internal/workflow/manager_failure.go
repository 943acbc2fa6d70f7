package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"engram/internal/events"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/services"
)

// transitionJob validates, persists, and publishes a job state change.
func (m *Manager) transitionJob(ctx context.Context, j *job.DiscJob, to job.State, message string) error {
	if err := j.Transition(to); err != nil {
		return err
	}
	if err := m.store.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("persist job transition: %w", err)
	}
	m.publishJob(j, events.TypeJobTransition, message)
	return nil
}

// transitionTitle validates, persists, and publishes a title state change.
func (m *Manager) transitionTitle(ctx context.Context, j *job.DiscJob, t *job.DiscTitle, to job.TitleState) error {
	if err := t.Transition(to); err != nil {
		return err
	}
	if err := m.store.UpdateTitle(ctx, t); err != nil {
		return fmt.Errorf("persist title transition: %w", err)
	}
	m.publishTitle(j, t)
	return nil
}

// parkForReview routes the job to review_needed and stops the pipeline run
// without failing the job.
func (m *Manager) parkForReview(ctx context.Context, j *job.DiscJob, reason string) error {
	if err := j.MarkReview(reason); err != nil {
		return err
	}
	if err := m.store.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("persist review transition: %w", err)
	}
	m.publishJob(j, events.TypeJobTransition, reason)
	name := j.DetectedTitle
	if name == "" {
		name = j.VolumeLabel
	}
	if err := m.deps.Notifier.NotifyReviewRequired(ctx, name, reason); err != nil {
		m.logger.Warn("review notification failed", logging.Error(err))
	}
	return errParkedForReview
}

// reviewTitle parks one title in the review state with a reason, leaving
// sibling titles untouched.
func (m *Manager) reviewTitle(ctx context.Context, logger *slog.Logger, j *job.DiscJob, t *job.DiscTitle, episode, reason string) {
	if err := t.SetMatch(episode, 0, nil, false); err != nil {
		logger.Error("failed to park title for review", logging.Error(err))
		return
	}
	t.ErrorMessage = reason
	if err := m.store.UpdateTitle(ctx, t); err != nil {
		logger.Error("failed to persist title review", logging.Error(err))
	}
	m.publishTitle(j, t)
	if err := m.deps.Notifier.NotifyMatchReview(ctx, j.DetectedTitle, episode, reason); err != nil {
		logger.Warn("match review notification failed", logging.Error(err))
	}
}

// failTitle marks one title failed without touching its siblings.
func (m *Manager) failTitle(ctx context.Context, j *job.DiscJob, t *job.DiscTitle, reason string) {
	t.ForceFail(reason)
	if err := m.store.UpdateTitle(ctx, t); err != nil {
		m.logger.Error("failed to persist title failure", logging.Error(err))
	}
	m.publishTitle(j, t)
}

// failJob fails the job and cascades onto every non-terminal title.
func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, j *job.DiscJob, cause error) {
	state := services.FailureState(cause)
	message := strings.TrimSpace(cause.Error())
	if state == job.StateReviewNeeded && !j.State.IsTerminal() {
		if err := m.parkForReview(ctx, j, message); err != nil && err != errParkedForReview {
			logger.Error("failed to route job to review", logging.Error(err))
		}
		return
	}
	m.persistFailure(ctx, logger, j, message)
}

// failCancelledJob lands a cancelled job in failed with the right reason.
// The runner context is already cancelled, so persistence uses a fresh one.
func (m *Manager) failCancelledJob(j *job.DiscJob, logger *slog.Logger) {
	reason := job.DaemonStopReason
	m.mu.Lock()
	if m.cancelled[j.ID] {
		reason = job.UserCancelReason
		delete(m.cancelled, j.ID)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.persistFailure(ctx, logger, j, reason)
}

func (m *Manager) persistFailure(ctx context.Context, logger *slog.Logger, j *job.DiscJob, reason string) {
	if err := j.Fail(reason); err != nil {
		logger.Error("failed to mark job failed", logging.Error(err))
		return
	}
	if err := m.store.SaveJob(ctx, j); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	m.publishJob(j, events.TypeJobTransition, reason)
	for _, title := range j.Titles {
		if title != nil && title.State == job.TitleFailed {
			m.publishTitle(j, title)
		}
	}
	logger.Error("job failed",
		logging.Args(
			logging.String(logging.FieldEventType, "job_failure"),
			logging.String("error_message", reason),
		)...)
	if err := m.deps.Notifier.NotifyError(ctx, fmt.Errorf("%s", reason), j.VolumeLabel); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}
