package api

import (
	"time"

	"engram/internal/events"
	"engram/internal/job"
)

// DaemonStatus reports daemon runtime state.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	MonitorActive bool           `json:"monitor_active"`
	ActiveJobs    []int64        `json:"active_jobs,omitempty"`
	JobCounts     map[string]int `json:"job_counts,omitempty"`
	DatabasePath  string         `json:"database_path"`
	LockPath      string         `json:"lock_path"`
	LastError     string         `json:"last_error,omitempty"`
}

// TitleSummary is the wire form of a disc title.
type TitleSummary struct {
	ID              int64   `json:"id"`
	TitleIndex      int     `json:"title_index"`
	DurationSeconds int     `json:"duration_seconds"`
	State           string  `json:"state"`
	Episode         string  `json:"episode,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	OutputFilename  string  `json:"output_filename,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// JobSummary is the wire form of a disc job.
type JobSummary struct {
	ID             int64          `json:"id"`
	DriveID        string         `json:"drive_id"`
	VolumeLabel    string         `json:"volume_label"`
	ContentType    string         `json:"content_type"`
	State          string         `json:"state"`
	DetectedTitle  string         `json:"detected_title,omitempty"`
	DetectedSeason int            `json:"detected_season,omitempty"`
	ReviewReason   string         `json:"review_reason,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Titles         []TitleSummary `json:"titles,omitempty"`
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobSummary `json:"job"`
}

// ResolveRequest supplies the missing identification for a job parked in
// review. Titles narrows the rip to the given title indices, for discs
// parked with more candidates than the classifier could choose between.
type ResolveRequest struct {
	Name        string `json:"name,omitempty"`
	Season      int    `json:"season,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Titles      []int  `json:"titles,omitempty"`
}

// EventsResponse carries a window of pipeline events plus the cursor for the
// next fetch.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromJob converts a stored job into its wire form.
func FromJob(j *job.DiscJob) JobSummary {
	summary := JobSummary{
		ID:             j.ID,
		DriveID:        j.DriveID,
		VolumeLabel:    j.VolumeLabel,
		ContentType:    string(j.ContentType),
		State:          string(j.State),
		DetectedTitle:  j.DetectedTitle,
		DetectedSeason: j.DetectedSeason,
		ReviewReason:   j.ReviewReason,
		ErrorMessage:   j.ErrorMessage,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
	for _, t := range j.Titles {
		summary.Titles = append(summary.Titles, TitleSummary{
			ID:              t.ID,
			TitleIndex:      t.TitleIndex,
			DurationSeconds: t.DurationSeconds,
			State:           string(t.State),
			Episode:         t.MatchedEpisode,
			Confidence:      t.MatchConfidence,
			OutputFilename:  t.OutputFilename,
			ErrorMessage:    t.ErrorMessage,
		})
	}
	return summary
}
