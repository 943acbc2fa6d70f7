package workflow

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"engram/internal/classifier"
	"engram/internal/config"
	"engram/internal/events"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/matcher"
	"engram/internal/notifications"
	"engram/internal/services/tmdb"
	"engram/internal/store"
)

// Ripper enumerates and extracts titles from an inserted disc. Rip returns
// the absolute path of the produced file.
type Ripper interface {
	Scan(ctx context.Context, driveID string) ([]classifier.Track, error)
	Rip(ctx context.Context, driveID string, title *job.DiscTitle, destDir string) (string, error)
}

// SubtitleSource resolves a directory of reference SRT files for a show
// season.
type SubtitleSource interface {
	Fetch(ctx context.Context, show string, season int) (string, error)
}

// Organizer files a finished title into the library or review area and
// returns the final path.
type Organizer interface {
	Place(ctx context.Context, j *job.DiscJob, t *job.DiscTitle, sourcePath string) (string, error)
}

// Ejector opens the tray of a drive once its job completes.
type Ejector interface {
	Eject(driveID string) error
}

// Dependencies carries the collaborator implementations a Manager drives.
// Notifier and Hub default to no-ops when nil; Metadata and Ejector are
// optional.
type Dependencies struct {
	Ripper      Ripper
	Subtitles   SubtitleSource
	Organizer   Organizer
	Transcriber matcher.Transcriber
	Metadata    tmdb.Searcher
	Ejector     Ejector
	Notifier    notifications.Service
	Hub         *events.Hub
}

// Manager owns all in-flight disc jobs. It polls the store for jobs that
// need work, runs one goroutine per job, and bounds concurrent matching
// with a shared worker pool.
type Manager struct {
	cfg        *config.Config
	store      *store.Store
	logger     *slog.Logger
	classifier *classifier.Classifier
	deps       Dependencies
	matchSlots *semaphore.Weighted

	pollInterval  time.Duration
	retryInterval time.Duration
	kick          chan struct{}

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	active    map[int64]context.CancelFunc
	cancelled map[int64]bool
	lastErr   error
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger, deps Dependencies) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(cfg)
	}
	if deps.Hub == nil {
		deps.Hub = events.NewHub(0)
	}
	workers := cfg.Matcher.Workers
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		cfg:           cfg,
		store:         st,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		classifier:    classifier.New(cfg.Classifier, logger),
		deps:          deps,
		matchSlots:    semaphore.NewWeighted(int64(workers)),
		pollInterval:  time.Duration(cfg.Workflow.JobPollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		kick:          make(chan struct{}, 1),
		active:        make(map[int64]context.CancelFunc),
		cancelled:     make(map[int64]bool),
	}
}

// Hub exposes the event stream for external broadcasters.
func (m *Manager) Hub() *events.Hub {
	return m.deps.Hub
}

// Running reports whether the background loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ActiveJobs returns the ids of jobs currently held by a runner.
func (m *Manager) ActiveJobs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

// LastError returns the most recent job or polling error, for status output.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// wake nudges the poll loop without waiting out the poll interval.
func (m *Manager) wake() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// stagingDir returns the per-job directory ripped files land in. The layout
// is stable so a resumed job can rebuild title paths from OutputFilename.
func (m *Manager) stagingDir(jobID int64) string {
	return filepath.Join(m.cfg.Paths.StagingDir, jobIDDirName(jobID))
}

func (m *Manager) titlePath(jobID int64, t *job.DiscTitle) string {
	return filepath.Join(m.stagingDir(jobID), t.OutputFilename)
}

func (m *Manager) publishJob(j *job.DiscJob, eventType events.Type, message string) {
	m.deps.Hub.Publish(events.Event{
		Type:     eventType,
		JobID:    j.ID,
		DriveID:  j.DriveID,
		JobState: j.State,
		Message:  message,
	})
}

func (m *Manager) publishTitle(j *job.DiscJob, t *job.DiscTitle) {
	m.deps.Hub.Publish(events.Event{
		Type:       events.TypeTitleTransition,
		JobID:      j.ID,
		TitleID:    t.ID,
		DriveID:    j.DriveID,
		JobState:   j.State,
		TitleState: t.State,
		Episode:    t.MatchedEpisode,
		Confidence: t.MatchConfidence,
	})
}
