package job

import (
	"fmt"
	"strings"
	"time"
)

// UserCancelReason is the failure reason set when a user explicitly cancels a job.
const UserCancelReason = "Cancelled by user"

// DaemonStopReason is the failure reason set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

// RunnerUp captures a non-winning episode candidate for review presentation.
type RunnerUp struct {
	Episode    string  `json:"episode"`
	Confidence float64 `json:"confidence"`
	VoteCount  int     `json:"vote_count"`
}

// MatchDetails records the evidence behind an episode match verdict.
type MatchDetails struct {
	VoteCount    int        `json:"vote_count"`
	FileCoverage float64    `json:"file_coverage"`
	ScoreGap     float64    `json:"score_gap"`
	RunnerUps    []RunnerUp `json:"runner_ups,omitempty"`
}

// DiscJob represents one disc's trip through the pipeline, persisted in SQLite.
type DiscJob struct {
	ID             int64
	DriveID        string
	VolumeLabel    string
	ContentType    ContentType
	State          State
	DetectedTitle  string
	DetectedSeason int
	ReviewReason   string
	ErrorMessage   string
	LastHeartbeat  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Titles is populated by the store when loading a job with its tracks.
	Titles []*DiscTitle
}

// DiscTitle represents a single track's sub-lifecycle within a job.
type DiscTitle struct {
	ID              int64
	JobID           int64
	TitleIndex      int
	DurationSeconds int
	FileSizeBytes   int64
	IsSelected      bool
	OutputFilename  string
	MatchedEpisode  string
	MatchConfidence float64
	MatchDetails    *MatchDetails
	State           TitleState
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewDiscJob builds a job in its initial state for a freshly inserted disc.
func NewDiscJob(driveID, volumeLabel string) *DiscJob {
	now := time.Now().UTC()
	return &DiscJob{
		DriveID:     strings.TrimSpace(driveID),
		VolumeLabel: strings.TrimSpace(volumeLabel),
		ContentType: ContentUnknown,
		State:       StateIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the job to the requested state after validating the edge.
func (j *DiscJob) Transition(to State) error {
	if _, ok := stateSet[to]; !ok {
		return fmt.Errorf("job %d: unknown state %q", j.ID, to)
	}
	if !CanTransition(j.State, to) {
		return fmt.Errorf("job %d: invalid transition %s -> %s", j.ID, j.State, to)
	}
	j.State = to
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkReview routes the job to review with a machine-readable reason.
func (j *DiscJob) MarkReview(reason string) error {
	if err := j.Transition(StateReviewNeeded); err != nil {
		return err
	}
	j.ReviewReason = strings.TrimSpace(reason)
	return nil
}

// Fail moves the job to the failed state, records the reason, and
// force-fails every title that has not reached a terminal state. Failing an
// already-terminal job is rejected so completed work is never clobbered.
func (j *DiscJob) Fail(reason string) error {
	if j.State.IsTerminal() {
		return fmt.Errorf("job %d: cannot fail terminal state %s", j.ID, j.State)
	}
	j.State = StateFailed
	j.ErrorMessage = strings.TrimSpace(reason)
	if j.ErrorMessage == "" {
		j.ErrorMessage = "job failed"
	}
	j.UpdatedAt = time.Now().UTC()
	for _, title := range j.Titles {
		if title == nil || title.State.IsTerminal() {
			continue
		}
		title.ForceFail(j.ErrorMessage)
	}
	return nil
}

// TitlesTerminal reports whether every title has reached a terminal state.
// Jobs with no titles count as terminal so movie-only flows are not stuck.
func (j *DiscJob) TitlesTerminal() bool {
	for _, title := range j.Titles {
		if title == nil {
			continue
		}
		if !title.State.IsTerminal() {
			return false
		}
	}
	return true
}

// SelectedTitles returns the titles flagged for ripping, in track order.
func (j *DiscJob) SelectedTitles() []*DiscTitle {
	selected := make([]*DiscTitle, 0, len(j.Titles))
	for _, title := range j.Titles {
		if title != nil && title.IsSelected {
			selected = append(selected, title)
		}
	}
	return selected
}

// Transition moves the title to the requested state after validating the edge.
func (t *DiscTitle) Transition(to TitleState) error {
	if _, ok := titleStateSet[to]; !ok {
		return fmt.Errorf("title %d: unknown state %q", t.TitleIndex, to)
	}
	if !CanTransitionTitle(t.State, to) {
		return fmt.Errorf("title %d: invalid transition %s -> %s", t.TitleIndex, t.State, to)
	}
	t.State = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// SetMatch records a match verdict and moves the title to matched or review.
func (t *DiscTitle) SetMatch(episode string, confidence float64, details *MatchDetails, accepted bool) error {
	target := TitleMatched
	if !accepted {
		target = TitleReview
	}
	if err := t.Transition(target); err != nil {
		return err
	}
	t.MatchedEpisode = strings.TrimSpace(episode)
	t.MatchConfidence = confidence
	t.MatchDetails = details
	return nil
}

// ForceFail moves the title to failed regardless of its current state,
// bypassing edge validation. Used when a job-level failure cascades.
func (t *DiscTitle) ForceFail(reason string) {
	t.State = TitleFailed
	t.ErrorMessage = strings.TrimSpace(reason)
	if t.ErrorMessage == "" {
		t.ErrorMessage = "title failed"
	}
	t.UpdatedAt = time.Now().UTC()
}

// Duration returns the title runtime as a time.Duration.
func (t *DiscTitle) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}
