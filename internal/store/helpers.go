package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"engram/internal/job"
)

const jobColumns = "id, drive_id, volume_label, content_type, state, detected_title, detected_season, review_reason, error_message, last_heartbeat, created_at, updated_at"

const titleColumns = "id, job_id, title_index, duration_seconds, file_size_bytes, is_selected, output_filename, matched_episode, match_confidence, match_details, state, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*job.DiscJob, error) {
	var (
		id               int64
		driveID          string
		volumeLabel      sql.NullString
		contentType      string
		state            string
		detectedTitle    sql.NullString
		detectedSeason   sql.NullInt64
		reviewReason     sql.NullString
		errorMessage     sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&driveID,
		&volumeLabel,
		&contentType,
		&state,
		&detectedTitle,
		&detectedSeason,
		&reviewReason,
		&errorMessage,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	j := &job.DiscJob{
		ID:             id,
		DriveID:        driveID,
		VolumeLabel:    volumeLabel.String,
		ContentType:    job.ContentType(contentType),
		State:          job.State(state),
		DetectedTitle:  detectedTitle.String,
		DetectedSeason: int(detectedSeason.Int64),
		ReviewReason:   reviewReason.String,
		ErrorMessage:   errorMessage.String,
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			j.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		j.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		j.UpdatedAt = updated
	}
	return j, nil
}

func scanTitle(scanner interface{ Scan(dest ...any) error }) (*job.DiscTitle, error) {
	var (
		id              int64
		jobID           int64
		titleIndex      int
		duration        sql.NullInt64
		fileSize        sql.NullInt64
		isSelected      sql.NullInt64
		outputFilename  sql.NullString
		matchedEpisode  sql.NullString
		matchConfidence sql.NullFloat64
		matchDetails    sql.NullString
		state           string
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&titleIndex,
		&duration,
		&fileSize,
		&isSelected,
		&outputFilename,
		&matchedEpisode,
		&matchConfidence,
		&matchDetails,
		&state,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	title := &job.DiscTitle{
		ID:              id,
		JobID:           jobID,
		TitleIndex:      titleIndex,
		DurationSeconds: int(duration.Int64),
		FileSizeBytes:   fileSize.Int64,
		IsSelected:      isSelected.Int64 != 0,
		OutputFilename:  outputFilename.String,
		MatchedEpisode:  matchedEpisode.String,
		MatchConfidence: matchConfidence.Float64,
		State:           job.TitleState(state),
		ErrorMessage:    errorMessage.String,
	}
	if matchDetails.Valid && matchDetails.String != "" {
		var details job.MatchDetails
		if err := json.Unmarshal([]byte(matchDetails.String), &details); err != nil {
			return nil, fmt.Errorf("unmarshal match details: %w", err)
		}
		title.MatchDetails = &details
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		title.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		title.UpdatedAt = updated
	}
	return title, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
