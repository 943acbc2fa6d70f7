package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"engram/internal/job"
)

// ErrDriveBusy indicates the drive already has a non-terminal job.
var ErrDriveBusy = errors.New("drive already has an active job")

// CreateJob inserts a job and its enumerated titles, assigning identifiers.
// At most one non-terminal job may exist per drive; a second insert on an
// occupied drive is rejected with ErrDriveBusy.
func (s *Store) CreateJob(ctx context.Context, j *job.DiscJob) error {
	if j == nil {
		return errors.New("job is nil")
	}
	active, err := s.ActiveJobForDrive(ctx, j.DriveID)
	if err != nil {
		return err
	}
	if active != nil {
		return fmt.Errorf("%w: drive %s holds job %d in state %s", ErrDriveBusy, j.DriveID, active.ID, active.State)
	}

	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO disc_jobs (
            drive_id, volume_label, content_type, state, detected_title,
            detected_season, review_reason, error_message, last_heartbeat,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.DriveID,
		nullableString(j.VolumeLabel),
		j.ContentType,
		j.State,
		nullableString(j.DetectedTitle),
		j.DetectedSeason,
		nullableString(j.ReviewReason),
		nullableString(j.ErrorMessage),
		nullableTime(j.LastHeartbeat),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	j.ID = id

	for _, title := range j.Titles {
		title.JobID = id
		if err := s.InsertTitle(ctx, title); err != nil {
			return err
		}
	}
	return nil
}

// GetJob fetches a job with its titles, or nil when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*job.DiscJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM disc_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if err := s.loadTitles(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// ActiveJobForDrive returns the drive's current non-terminal job, or nil.
func (s *Store) ActiveJobForDrive(ctx context.Context, driveID string) (*job.DiscJob, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM disc_jobs
         WHERE drive_id = ? AND state NOT IN (?, ?)
         ORDER BY id LIMIT 1`,
		driveID, job.StateCompleted, job.StateFailed,
	)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for drive: %w", err)
	}
	if err := s.loadTitles(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// UpdateJob persists changes to a job row. Titles are saved separately.
func (s *Store) UpdateJob(ctx context.Context, j *job.DiscJob) error {
	if j == nil {
		return errors.New("job is nil")
	}
	j.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE disc_jobs
         SET drive_id = ?, volume_label = ?, content_type = ?, state = ?,
             detected_title = ?, detected_season = ?, review_reason = ?,
             error_message = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		j.DriveID,
		nullableString(j.VolumeLabel),
		j.ContentType,
		j.State,
		nullableString(j.DetectedTitle),
		j.DetectedSeason,
		nullableString(j.ReviewReason),
		nullableString(j.ErrorMessage),
		nullableTime(j.LastHeartbeat),
		j.UpdatedAt.Format(time.RFC3339Nano),
		j.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// SaveJob persists a job row together with all of its title rows.
func (s *Store) SaveJob(ctx context.Context, j *job.DiscJob) error {
	if err := s.UpdateJob(ctx, j); err != nil {
		return err
	}
	for _, title := range j.Titles {
		if err := s.UpdateTitle(ctx, title); err != nil {
			return err
		}
	}
	return nil
}

// ListJobs returns jobs filtered by state set, oldest first. With no states
// every job is returned.
func (s *Store) ListJobs(ctx context.Context, states ...job.State) ([]*job.DiscJob, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM disc_jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(states) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(states))
		args := make([]any, len(states))
		for i, state := range states {
			args[i] = state
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE state IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.DiscJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if err := s.loadTitles(ctx, j); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// RemoveJob deletes a job and, through the schema cascade, its titles.
func (s *Store) RemoveJob(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM disc_jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearTerminal removes completed and failed jobs.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM disc_jobs WHERE state IN (?, ?)`,
		job.StateCompleted, job.StateFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM disc_jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (map[job.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM disc_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[job.State]int)
	for rows.Next() {
		var state job.State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// UpdateHeartbeat records liveness for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE disc_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// FailStaleJobs fails in-flight jobs whose heartbeat expired before the
// cutoff, cascading the failure to their non-terminal titles. This runs on
// daemon startup so a crash never leaves a job stuck mid-pipeline.
func (s *Store) FailStaleJobs(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ensureContext(ctx), nil)
	if err != nil {
		return 0, fmt.Errorf("begin stale tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE disc_titles
         SET state = ?, error_message = ?, updated_at = ?
         WHERE state NOT IN (?, ?, ?, ?)
           AND job_id IN (
               SELECT id FROM disc_jobs
               WHERE state NOT IN (?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?
           )`,
		job.TitleFailed, reason, now,
		job.TitleMatched, job.TitleReview, job.TitleCompleted, job.TitleFailed,
		job.StateCompleted, job.StateFailed, cutoffStr,
	); err != nil {
		return 0, fmt.Errorf("fail stale titles: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE disc_jobs
         SET state = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE state NOT IN (?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		job.StateFailed, reason, now,
		job.StateCompleted, job.StateFailed, cutoffStr,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit stale tx: %w", err)
	}
	return affected, nil
}
