package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engram/internal/events"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/store"
)

// Start begins background job processing. Jobs left in a processing state
// by a previous daemon run are failed first so the poll loop never resumes
// work against a disc that may no longer be in the drive.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-time.Duration(m.cfg.Workflow.HeartbeatTimeout) * time.Second)
	if failed, err := m.store.FailStaleJobs(runCtx, cutoff, "daemon restarted while job was in flight"); err != nil {
		m.logger.Warn("stale job sweep failed; stuck jobs may remain", logging.Error(err))
	} else if failed > 0 {
		m.logger.Info("failed stale jobs from previous run", logging.Int64("count", failed))
	}

	go m.runLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight jobs to
// observe cancellation.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// HandleDiscInserted records a freshly inserted disc as a new job. The
// store rejects the insert when the drive already has a non-terminal job.
func (m *Manager) HandleDiscInserted(ctx context.Context, driveID, volumeLabel string) (*job.DiscJob, error) {
	j := job.NewDiscJob(driveID, volumeLabel)
	if err := m.store.CreateJob(ctx, j); err != nil {
		if errors.Is(err, store.ErrDriveBusy) {
			m.logger.Warn("disc inserted on busy drive",
				logging.Args(
					logging.String(logging.FieldDriveID, driveID),
					logging.String("volume_label", volumeLabel),
				)...)
		}
		return nil, err
	}
	m.logger.Info("disc job created",
		logging.Args(
			logging.Int64(logging.FieldJobID, j.ID),
			logging.String(logging.FieldDriveID, driveID),
			logging.String("volume_label", volumeLabel),
		)...)
	m.deps.Hub.Publish(events.Event{
		Type:    events.TypeDiscInserted,
		JobID:   j.ID,
		DriveID: driveID,
		Message: volumeLabel,
	})
	m.publishJob(j, events.TypeJobCreated, volumeLabel)
	if err := m.deps.Notifier.NotifyDiscDetected(ctx, volumeLabel, driveID); err != nil {
		m.logger.Warn("disc detected notification failed", logging.Error(err))
	}
	m.wake()
	return j, nil
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		started, err := m.dispatchPending(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch pending jobs",
				logging.Args(
					logging.Error(err),
					logging.String(logging.FieldEventType, "job_fetch_failed"),
					logging.String(logging.FieldErrorHint, "check database access"),
				)...)
			if !m.sleep(ctx, m.retryInterval) {
				return
			}
			continue
		}
		if started == 0 {
			if !m.sleep(ctx, m.pollInterval) {
				return
			}
		}
	}
}

// dispatchPending starts a runner for every job awaiting work. Idle jobs
// enter the pipeline from the top; ripping jobs with pending titles are
// review resolutions re-entering at the rip stage.
func (m *Manager) dispatchPending(ctx context.Context) (int, error) {
	jobs, err := m.store.ListJobs(ctx, job.StateIdle, job.StateRipping)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	started := 0
	for _, j := range jobs {
		if m.claim(ctx, j) {
			started++
		}
	}
	return started, nil
}

// claim registers a job as active and launches its runner goroutine.
// Returns false when the job is already being processed.
func (m *Manager) claim(ctx context.Context, j *job.DiscJob) bool {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}
	if _, ok := m.active[j.ID]; ok {
		m.mu.Unlock()
		return false
	}
	jobCtx, cancel := context.WithCancel(ctx)
	m.active[j.ID] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.active, j.ID)
			m.mu.Unlock()
			m.wg.Done()
		}()
		m.runJob(jobCtx, j)
	}()
	return true
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	case <-m.kick:
		return true
	}
}
