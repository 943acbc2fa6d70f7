package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"engram/internal/api"
	"engram/internal/config"
	"engram/internal/logging"
	"engram/internal/sentinel"
	"engram/internal/store"
	"engram/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	manager *workflow.Manager
	monitor *sentinel.Monitor
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon around already-wired dependencies. The monitor may
// be nil when no drives are configured.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, manager *workflow.Manager, monitor *sentinel.Monitor) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "engram.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		manager:  manager,
		monitor:  monitor,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.API.Bind, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager, disc
// monitor, and control API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("prepare lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another engram daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	if err := d.monitor.Start(runCtx); err != nil {
		d.logger.Warn("disc monitor failed to start", logging.Args(logging.Error(err))...)
	}
	if err := d.api.start(runCtx); err != nil {
		d.monitor.Stop()
		d.manager.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("engram daemon started", logging.Args(
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
	)...)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Args(logging.Error(err))...)
	}
	d.running.Store(false)
	d.logger.Info("engram daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the address the control API is listening on, empty when
// the listener is disabled or the daemon is stopped.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// LockPath returns the path of the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Status summarizes daemon runtime state for the control API.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:       d.running.Load(),
		MonitorActive: d.monitor.Running(),
		ActiveJobs:    d.manager.ActiveJobs(),
		DatabasePath:  d.store.Path(),
		LockPath:      d.lockPath,
	}
	if err := d.manager.LastError(); err != nil {
		status.LastError = err.Error()
	}
	if counts, err := d.store.Stats(ctx); err == nil {
		status.JobCounts = make(map[string]int, len(counts))
		for state, count := range counts {
			status.JobCounts[string(state)] = count
		}
	}
	return status
}
