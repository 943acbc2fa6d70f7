package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"engram/internal/classifier"
	"engram/internal/config"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/matcher"
	"engram/internal/organizer"
	"engram/internal/store"
	"engram/internal/subtitles"
	"engram/internal/testsupport"
	"engram/internal/workflow"
)

func fastWorkflow() testsupport.ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.JobPollInterval = 1
		cfg.Workflow.ErrorRetryInterval = 1
		cfg.Workflow.HeartbeatInterval = 1
	}
}

type fakeRipper struct {
	mu       sync.Mutex
	tracks   []classifier.Track
	scanErr  error
	blockRip bool
	ripped   []int
}

func (r *fakeRipper) Scan(ctx context.Context, driveID string) ([]classifier.Track, error) {
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	return r.tracks, nil
}

func (r *fakeRipper) Rip(ctx context.Context, driveID string, title *job.DiscTitle, destDir string) (string, error) {
	r.mu.Lock()
	r.ripped = append(r.ripped, title.TitleIndex)
	r.mu.Unlock()
	if r.blockRip {
		<-ctx.Done()
		return "", ctx.Err()
	}
	path := filepath.Join(destDir, fmt.Sprintf("title_%02d.mkv", title.TitleIndex))
	if err := os.WriteFile(path, []byte("ripped"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeSubtitles struct {
	dir string
	err error
}

func (s *fakeSubtitles) Fetch(ctx context.Context, show string, season int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.dir, nil
}

// routedTranscriber echoes each title's own reference text back, keyed by
// the ripped file name, so matching converges on a known episode.
type routedTranscriber struct {
	index  *subtitles.ReferenceIndex
	routes map[string]string
	slack  float64
}

func (tr *routedTranscriber) Transcribe(ctx context.Context, path string, chunk matcher.Chunk) (string, error) {
	code, ok := tr.routes[filepath.Base(path)]
	if !ok {
		return "", nil
	}
	start := float64(chunk.StartSeconds)
	return tr.index.WindowText(code, start, start+float64(chunk.LengthSeconds), tr.slack), nil
}

func episodeTracks() []classifier.Track {
	return []classifier.Track{
		{Index: 1, DurationSeconds: 1290, SizeBytes: 900 << 20, ChapterCount: 6},
		{Index: 2, DurationSeconds: 1305, SizeBytes: 910 << 20, ChapterCount: 6},
		{Index: 3, DurationSeconds: 1320, SizeBytes: 920 << 20, ChapterCount: 6},
		{Index: 4, DurationSeconds: 600, SizeBytes: 80 << 20, ChapterCount: 1},
	}
}

func writeSeasonSRTs(t *testing.T, dir string) {
	t.Helper()
	scenes := map[string]string{
		"S01E01.srt": "harbor lighthouse keeper storm warning",
		"S01E02.srt": "desert caravan water ration dispute",
		"S01E03.srt": "orbital station docking clamp failure",
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for name, scene := range scenes {
		var sb strings.Builder
		for i := 0; i < 92; i++ {
			start := i * 15
			fmt.Fprintf(&sb, "%d\n%s --> %s\n%s scene %d\n\n",
				i+1, srtStamp(start), srtStamp(start+5), scene, i)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sb.String()), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func srtStamp(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d,000", seconds/3600, (seconds/60)%60, seconds%60)
}

func defaultRoutes() map[string]string {
	return map[string]string{
		"title_01.mkv": "S01E01",
		"title_02.mkv": "S01E02",
		"title_03.mkv": "S01E03",
	}
}

type pipelineEnv struct {
	cfg     *config.Config
	store   *store.Store
	manager *workflow.Manager
	ripper  *fakeRipper
	subs    *fakeSubtitles
}

func newPipelineEnv(t *testing.T, opts ...testsupport.ConfigOption) *pipelineEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{fastWorkflow()}, opts...)...)
	st := testsupport.MustOpenStore(t, cfg)

	subsDir := filepath.Join(t.TempDir(), "srt")
	writeSeasonSRTs(t, subsDir)
	index, err := subtitles.LoadReferenceIndex(subsDir, "Test Show", 1)
	if err != nil {
		t.Fatalf("LoadReferenceIndex: %v", err)
	}

	ripper := &fakeRipper{tracks: episodeTracks()}
	subs := &fakeSubtitles{dir: subsDir}
	deps := workflow.Dependencies{
		Ripper:    ripper,
		Subtitles: subs,
		Organizer: organizer.New(cfg, logging.NewNop()),
		Transcriber: &routedTranscriber{
			index:  index,
			routes: defaultRoutes(),
			slack:  float64(cfg.Matcher.AlignmentSlack),
		},
	}
	return &pipelineEnv{
		cfg:     cfg,
		store:   st,
		manager: workflow.NewManager(cfg, st, logging.NewNop(), deps),
		ripper:  ripper,
		subs:    subs,
	}
}

func waitForJobState(t *testing.T, st *store.Store, id int64, want job.State) *job.DiscJob {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		j, err := st.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if j != nil && j.State == want {
			return j
		}
		if j != nil && j.State.IsTerminal() && !want.IsTerminal() {
			t.Fatalf("job reached terminal state %s (error %q) while waiting for %s", j.State, j.ErrorMessage, want)
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %d to reach %s", id, want)
	return nil
}

func TestPipelineCompletesTVJob(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "TEST_SHOW_S1D1")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	final := waitForJobState(t, env.store, j.ID, job.StateCompleted)
	if final.DetectedTitle != "Test Show" || final.DetectedSeason != 1 {
		t.Fatalf("unexpected detection: %q season %d", final.DetectedTitle, final.DetectedSeason)
	}
	if len(final.Titles) != 3 {
		t.Fatalf("expected 3 selected titles, got %d", len(final.Titles))
	}
	seen := map[string]bool{}
	for _, title := range final.Titles {
		if title.State != job.TitleCompleted {
			t.Fatalf("title %d in state %s, want completed", title.TitleIndex, title.State)
		}
		if title.MatchConfidence < env.cfg.Matcher.AutoAcceptFloor {
			t.Fatalf("title %d confidence %.2f below auto-accept floor", title.TitleIndex, title.MatchConfidence)
		}
		seen[title.MatchedEpisode] = true
	}
	for _, code := range []string{"S01E01", "S01E02", "S01E03"} {
		if !seen[code] {
			t.Fatalf("episode %s never matched; got %v", code, seen)
		}
		dest := filepath.Join(env.cfg.Paths.LibraryDir, env.cfg.Library.TVDir,
			"Test Show", "Season 01", "Test Show - "+code+".mkv")
		if _, err := os.Stat(dest); err != nil {
			t.Fatalf("expected library file %s: %v", dest, err)
		}
	}
}

func TestPipelineMovieSkipsMatching(t *testing.T) {
	env := newPipelineEnv(t)
	env.ripper.tracks = []classifier.Track{
		{Index: 1, DurationSeconds: 7200, SizeBytes: 20 << 30, ChapterCount: 24},
		{Index: 2, DurationSeconds: 400, SizeBytes: 100 << 20, ChapterCount: 2},
	}
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "DUNE")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	final := waitForJobState(t, env.store, j.ID, job.StateCompleted)
	if final.ContentType != job.ContentMovie {
		t.Fatalf("expected movie classification, got %s", final.ContentType)
	}
	if len(final.Titles) != 1 || final.Titles[0].State != job.TitleCompleted {
		t.Fatalf("unexpected titles: %+v", final.Titles)
	}
	dest := filepath.Join(env.cfg.Paths.LibraryDir, env.cfg.Library.MoviesDir, "Dune", "Dune.mkv")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected movie file %s: %v", dest, err)
	}
}

func TestPipelineGenericLabelParksForReview(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "LOGICAL_VOLUME_ID")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	parked := waitForJobState(t, env.store, j.ID, job.StateReviewNeeded)
	if parked.ReviewReason != classifier.ReviewReasonNameUndetected {
		t.Fatalf("unexpected review reason %q", parked.ReviewReason)
	}
	if parked.DetectedTitle != "" {
		t.Fatalf("generic label must not produce a detected title, got %q", parked.DetectedTitle)
	}

	if len(parked.Titles) != 4 {
		t.Fatalf("expected all 4 enumerated titles persisted for review, got %d", len(parked.Titles))
	}
	if len(parked.SelectedTitles()) != 3 {
		t.Fatalf("expected the 3 episode titles pre-selected, got %d", len(parked.SelectedTitles()))
	}

	if err := env.manager.ResolveReview(ctx, j.ID, "Test Show", 1, job.ContentTV, nil); err != nil {
		t.Fatalf("ResolveReview: %v", err)
	}
	final := waitForJobState(t, env.store, j.ID, job.StateCompleted)
	for _, title := range final.SelectedTitles() {
		if title.State != job.TitleCompleted {
			t.Fatalf("title %d in state %s after review resolution", title.TitleIndex, title.State)
		}
	}
	for _, title := range final.Titles {
		if !title.IsSelected && title.State != job.TitlePending {
			t.Fatalf("unselected title %d ripped: state %s", title.TitleIndex, title.State)
		}
	}
}

func TestResolveReviewRequiresName(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "LOGICAL_VOLUME_ID")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	waitForJobState(t, env.store, j.ID, job.StateReviewNeeded)
	if err := env.manager.ResolveReview(ctx, j.ID, "", 1, job.ContentTV, nil); err == nil {
		t.Fatal("expected error resolving review without a name")
	}
}

func TestResolveAmbiguousMovieSelectsEdition(t *testing.T) {
	env := newPipelineEnv(t)
	env.ripper.tracks = []classifier.Track{
		{Index: 1, DurationSeconds: 6423, SizeBytes: 22 << 30, ChapterCount: 28},
		{Index: 2, DurationSeconds: 6391, SizeBytes: 21 << 30, ChapterCount: 26},
		{Index: 3, DurationSeconds: 300, SizeBytes: 80 << 20, ChapterCount: 1},
		{Index: 4, DurationSeconds: 420, SizeBytes: 90 << 20, ChapterCount: 1},
		{Index: 5, DurationSeconds: 510, SizeBytes: 95 << 20, ChapterCount: 2},
	}
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "BLADE_RUNNER")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	parked := waitForJobState(t, env.store, j.ID, job.StateReviewNeeded)
	if parked.ContentType != job.ContentMovie {
		t.Fatalf("expected movie classification, got %s", parked.ContentType)
	}
	if !strings.Contains(parked.ReviewReason, "feature-length") {
		t.Fatalf("unexpected review reason %q", parked.ReviewReason)
	}
	if len(parked.Titles) != 5 {
		t.Fatalf("expected all 5 enumerated titles persisted, got %d", len(parked.Titles))
	}
	if len(parked.SelectedTitles()) != 0 {
		t.Fatalf("ambiguous disc must park with no selection, got %d", len(parked.SelectedTitles()))
	}

	if err := env.manager.ResolveReview(ctx, j.ID, "", 0, job.ContentMovie, []int{99}); err == nil {
		t.Fatal("expected error selecting a title not on the disc")
	}
	if err := env.manager.ResolveReview(ctx, j.ID, "", 0, job.ContentMovie, []int{2}); err != nil {
		t.Fatalf("ResolveReview: %v", err)
	}

	final := waitForJobState(t, env.store, j.ID, job.StateCompleted)
	env.ripper.mu.Lock()
	ripped := append([]int(nil), env.ripper.ripped...)
	env.ripper.mu.Unlock()
	if len(ripped) != 1 || ripped[0] != 2 {
		t.Fatalf("expected only title 2 ripped, got %v", ripped)
	}
	for _, title := range final.Titles {
		switch title.TitleIndex {
		case 2:
			if title.State != job.TitleCompleted || !title.IsSelected {
				t.Fatalf("chosen edition in state %s selected=%v", title.State, title.IsSelected)
			}
		default:
			if title.IsSelected || title.State != job.TitlePending {
				t.Fatalf("title %d touched despite not being selected: state %s selected=%v",
					title.TitleIndex, title.State, title.IsSelected)
			}
		}
	}
	dest := filepath.Join(env.cfg.Paths.LibraryDir, env.cfg.Library.MoviesDir,
		"Blade Runner", "Blade Runner.mkv")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected movie file %s: %v", dest, err)
	}
}

func TestResolveUnknownDiscFallsBackToAllTitles(t *testing.T) {
	env := newPipelineEnv(t)
	env.ripper.tracks = []classifier.Track{
		{Index: 1, DurationSeconds: 1290, SizeBytes: 900 << 20, ChapterCount: 6},
		{Index: 2, DurationSeconds: 1305, SizeBytes: 910 << 20, ChapterCount: 6},
	}
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "LOGICAL_VOLUME_ID")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	parked := waitForJobState(t, env.store, j.ID, job.StateReviewNeeded)
	if parked.ContentType != job.ContentUnknown {
		t.Fatalf("expected unknown classification, got %s", parked.ContentType)
	}
	if len(parked.Titles) != 2 || len(parked.SelectedTitles()) != 0 {
		t.Fatalf("expected 2 unselected titles, got %d/%d selected",
			len(parked.Titles), len(parked.SelectedTitles()))
	}

	if err := env.manager.ResolveReview(ctx, j.ID, "Test Show", 1, job.ContentTV, nil); err != nil {
		t.Fatalf("ResolveReview: %v", err)
	}
	final := waitForJobState(t, env.store, j.ID, job.StateCompleted)
	if len(final.SelectedTitles()) != 2 {
		t.Fatalf("expected resolution to select every enumerated title, got %d", len(final.SelectedTitles()))
	}
	env.ripper.mu.Lock()
	ripped := append([]int(nil), env.ripper.ripped...)
	env.ripper.mu.Unlock()
	if len(ripped) != 2 {
		t.Fatalf("expected both titles ripped, got %v", ripped)
	}
}

func TestCancelActiveJobCascades(t *testing.T) {
	env := newPipelineEnv(t)
	env.ripper.blockRip = true
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "TEST_SHOW_S1D1")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	waitForJobState(t, env.store, j.ID, job.StateRipping)
	if err := env.manager.CancelJob(ctx, j.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	final := waitForJobState(t, env.store, j.ID, job.StateFailed)
	if final.ErrorMessage != job.UserCancelReason {
		t.Fatalf("unexpected failure reason %q", final.ErrorMessage)
	}
	for _, title := range final.Titles {
		if !title.State.IsTerminal() {
			t.Fatalf("title %d left non-terminal after cancel: %s", title.TitleIndex, title.State)
		}
	}
}

func TestCancelParkedJob(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "LOGICAL_VOLUME_ID")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	waitForJobState(t, env.store, j.ID, job.StateReviewNeeded)
	if err := env.manager.CancelJob(ctx, j.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	final := waitForJobState(t, env.store, j.ID, job.StateFailed)
	if final.ErrorMessage != job.UserCancelReason {
		t.Fatalf("unexpected failure reason %q", final.ErrorMessage)
	}
}

func TestSubtitleFailureRoutesTitlesToReview(t *testing.T) {
	env := newPipelineEnv(t)
	env.subs.err = errors.New("subtitle provider down")
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "TEST_SHOW_S1D1")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.manager.Stop()

	final := waitForJobState(t, env.store, j.ID, job.StateCompleted)
	for _, title := range final.Titles {
		if title.State != job.TitleReview {
			t.Fatalf("title %d in state %s, want review", title.TitleIndex, title.State)
		}
		if title.MatchedEpisode != "" {
			t.Fatalf("title %d has episode %q despite missing subtitles", title.TitleIndex, title.MatchedEpisode)
		}
	}
	reviewDir := filepath.Join(env.cfg.Paths.ReviewDir, fmt.Sprintf("job-%d", j.ID))
	entries, err := os.ReadDir(reviewDir)
	if err != nil {
		t.Fatalf("expected review directory: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 parked files, found %d", len(entries))
	}
}

func TestHandleDiscInsertedRejectsBusyDrive(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	if _, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "TEST_SHOW_S1D1"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "OTHER_DISC"); !errors.Is(err, store.ErrDriveBusy) {
		t.Fatalf("expected drive busy error, got %v", err)
	}
	if _, err := env.manager.HandleDiscInserted(ctx, "/dev/sr1", "OTHER_DISC"); err != nil {
		t.Fatalf("insert on free drive failed: %v", err)
	}
}

func TestStopFailsInFlightJob(t *testing.T) {
	env := newPipelineEnv(t)
	env.ripper.blockRip = true
	ctx := context.Background()

	j, err := env.manager.HandleDiscInserted(ctx, "/dev/sr0", "TEST_SHOW_S1D1")
	if err != nil {
		t.Fatalf("HandleDiscInserted: %v", err)
	}
	if err := env.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitForJobState(t, env.store, j.ID, job.StateRipping)
	env.manager.Stop()

	final, err := env.store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if final.State != job.StateFailed || final.ErrorMessage != job.DaemonStopReason {
		t.Fatalf("expected daemon stop failure, got state %s reason %q", final.State, final.ErrorMessage)
	}
}

func TestSubtitleBarrierSignalsOnce(t *testing.T) {
	barrier := workflow.NewSubtitleBarrier()
	if barrier.Signalled() {
		t.Fatal("new barrier must not be signalled")
	}

	index := subtitles.NewReferenceIndex("Test Show", 1, map[string][]subtitles.Line{
		"S01E01": {{Start: 0, Text: "hello"}},
	})
	barrier.Signal(index, nil)
	barrier.Signal(nil, errors.New("late failure must be ignored"))

	got, err := barrier.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if got != index {
		t.Fatal("barrier returned wrong index")
	}
}

func TestSubtitleBarrierWaitCancelled(t *testing.T) {
	barrier := workflow.NewSubtitleBarrier()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := barrier.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
