package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"engram/internal/job"
)

// InsertTitle inserts one title row for an already persisted job.
func (s *Store) InsertTitle(ctx context.Context, t *job.DiscTitle) error {
	if t == nil {
		return errors.New("title is nil")
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	timestamp := now.Format(time.RFC3339Nano)

	details, err := marshalDetails(t.MatchDetails)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO disc_titles (
            job_id, title_index, duration_seconds, file_size_bytes, is_selected,
            output_filename, matched_episode, match_confidence, match_details,
            state, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.JobID,
		t.TitleIndex,
		t.DurationSeconds,
		t.FileSizeBytes,
		boolToInt(t.IsSelected),
		nullableString(t.OutputFilename),
		nullableString(t.MatchedEpisode),
		t.MatchConfidence,
		details,
		t.State,
		nullableString(t.ErrorMessage),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert title: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id
	return nil
}

// UpdateTitle persists changes to an existing title row.
func (s *Store) UpdateTitle(ctx context.Context, t *job.DiscTitle) error {
	if t == nil {
		return errors.New("title is nil")
	}
	t.UpdatedAt = time.Now().UTC()

	details, err := marshalDetails(t.MatchDetails)
	if err != nil {
		return err
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE disc_titles
         SET duration_seconds = ?, file_size_bytes = ?, is_selected = ?,
             output_filename = ?, matched_episode = ?, match_confidence = ?,
             match_details = ?, state = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		t.DurationSeconds,
		t.FileSizeBytes,
		boolToInt(t.IsSelected),
		nullableString(t.OutputFilename),
		nullableString(t.MatchedEpisode),
		t.MatchConfidence,
		details,
		t.State,
		nullableString(t.ErrorMessage),
		t.UpdatedAt.Format(time.RFC3339Nano),
		t.ID,
	); err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	return nil
}

// loadTitles populates a job's title rows ordered by track index.
func (s *Store) loadTitles(ctx context.Context, j *job.DiscJob) error {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+titleColumns+` FROM disc_titles WHERE job_id = ? ORDER BY title_index`,
		j.ID,
	)
	if err != nil {
		return fmt.Errorf("load titles: %w", err)
	}
	defer rows.Close()

	j.Titles = nil
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return err
		}
		j.Titles = append(j.Titles, title)
	}
	return rows.Err()
}

func marshalDetails(details *job.MatchDetails) (any, error) {
	if details == nil {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal match details: %w", err)
	}
	return string(data), nil
}
