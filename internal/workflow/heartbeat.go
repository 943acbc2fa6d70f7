package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"engram/internal/logging"
)

const defaultHeartbeatInterval = 30 * time.Second

// heartbeatLoop keeps a running job's last_heartbeat fresh so a crashed
// daemon's successor can tell abandoned jobs from live ones. The first beat
// is written immediately.
func (m *Manager) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()

	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	m.beat(ctx, jobID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.beat(ctx, jobID)
		}
	}
}

func (m *Manager) beat(ctx context.Context, jobID int64) {
	if err := m.store.UpdateHeartbeat(ctx, jobID); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.logger.Warn("heartbeat update failed",
			logging.Args(
				logging.Int64(logging.FieldJobID, jobID),
				logging.Error(err),
			)...)
	}
}
