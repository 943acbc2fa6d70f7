package workflow

import (
	"context"
	"fmt"
	"strings"

	"engram/internal/events"
	"engram/internal/job"
	"engram/internal/logging"
)

// CancelJob requests cooperative cancellation of a job. An active runner
// observes the cancel at its next stage boundary and lands the job in
// failed; a parked or queued job is failed directly.
func (m *Manager) CancelJob(ctx context.Context, id int64) error {
	m.mu.Lock()
	if cancel, ok := m.active[id]; ok {
		m.cancelled[id] = true
		m.mu.Unlock()
		cancel()
		return nil
	}
	m.mu.Unlock()

	j, err := m.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("job %d not found", id)
	}
	if j.State.IsTerminal() {
		return fmt.Errorf("job %d already %s", id, j.State)
	}
	if err := j.Fail(job.UserCancelReason); err != nil {
		return err
	}
	if err := m.store.SaveJob(ctx, j); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}
	m.publishJob(j, events.TypeJobTransition, job.UserCancelReason)
	m.logger.Info("job cancelled",
		logging.Args(logging.Int64(logging.FieldJobID, id))...)
	return nil
}

// ResolveReview supplies the human decision for a review-parked job and
// sends it back into the pipeline at the rip stage. Name is required when
// the disc never produced a usable title; season and contentType are
// optional refinements. Selection names the title indices to rip; when it
// is empty a job classified without a selection rips every enumerated
// title.
func (m *Manager) ResolveReview(ctx context.Context, id int64, name string, season int, contentType job.ContentType, selection []int) error {
	j, err := m.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("job %d not found", id)
	}
	if j.State != job.StateReviewNeeded {
		return fmt.Errorf("job %d is %s, not awaiting review", id, j.State)
	}

	if name = strings.TrimSpace(name); name != "" {
		j.DetectedTitle = name
	}
	if season > 0 {
		j.DetectedSeason = season
	}
	if contentType == job.ContentTV || contentType == job.ContentMovie {
		j.ContentType = contentType
	}
	if j.DetectedTitle == "" {
		return fmt.Errorf("job %d: a title name is required to resolve review", id)
	}
	if j.ContentType == job.ContentUnknown {
		return fmt.Errorf("job %d: a content type is required to resolve review", id)
	}
	if err := m.applySelection(ctx, j, selection); err != nil {
		return err
	}
	if len(j.SelectedTitles()) == 0 {
		return fmt.Errorf("job %d: no titles enumerated on disc, nothing to rip", id)
	}

	if err := j.Transition(job.StateRipping); err != nil {
		return err
	}
	j.ReviewReason = ""
	if err := m.store.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("persist review resolution: %w", err)
	}
	m.publishJob(j, events.TypeJobTransition, "review resolved")
	m.wake()
	m.logger.Info("review resolved",
		logging.Args(
			logging.Int64(logging.FieldJobID, id),
			logging.String("detected_title", j.DetectedTitle),
			logging.Int("detected_season", j.DetectedSeason),
			logging.String("content_type", string(j.ContentType)),
			logging.Int("selected_titles", len(j.SelectedTitles())),
		)...)
	return nil
}

// applySelection reconciles the persisted titles with the resolution's
// title choice. An explicit selection wins outright; without one, a job
// whose classification selected nothing falls back to every enumerated
// title.
func (m *Manager) applySelection(ctx context.Context, j *job.DiscJob, selection []int) error {
	byIndex := make(map[int]*job.DiscTitle, len(j.Titles))
	for _, title := range j.Titles {
		byIndex[title.TitleIndex] = title
	}

	var want map[int]struct{}
	switch {
	case len(selection) > 0:
		want = make(map[int]struct{}, len(selection))
		for _, index := range selection {
			if _, ok := byIndex[index]; !ok {
				return fmt.Errorf("job %d: title %d not found on disc", j.ID, index)
			}
			want[index] = struct{}{}
		}
	case len(j.SelectedTitles()) == 0:
		want = make(map[int]struct{}, len(j.Titles))
		for _, title := range j.Titles {
			want[title.TitleIndex] = struct{}{}
		}
	default:
		return nil
	}

	for _, title := range j.Titles {
		_, selected := want[title.TitleIndex]
		if title.IsSelected == selected {
			continue
		}
		title.IsSelected = selected
		if err := m.store.UpdateTitle(ctx, title); err != nil {
			return fmt.Errorf("persist title selection: %w", err)
		}
	}
	return nil
}
