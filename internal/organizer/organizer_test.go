package organizer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"engram/internal/job"
	"engram/internal/organizer"
	"engram/internal/testsupport"
)

func TestPlaceEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	source := filepath.Join(cfg.Paths.StagingDir, "title_03.mkv")
	testsupport.WriteFile(t, source, 64)

	j := &job.DiscJob{ID: 1, ContentType: job.ContentTV, DetectedTitle: "The Office", DetectedSeason: 1}
	title := &job.DiscTitle{ID: 3, TitleIndex: 3, MatchedEpisode: "S01E03", State: job.TitleMatched}

	final, err := org.Place(context.Background(), j, title, source)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	want := filepath.Join(cfg.Paths.LibraryDir, cfg.Library.TVDir, "The Office", "Season 01", "The Office - S01E03.mkv")
	if final != want {
		t.Fatalf("expected %s, got %s", want, final)
	}
	if _, err := os.Stat(final); err != nil {
		t.Fatalf("final file missing: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("source should be moved away, stat err: %v", err)
	}
}

func TestPlaceMovie(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	source := filepath.Join(cfg.Paths.StagingDir, "title_01.mkv")
	testsupport.WriteFile(t, source, 64)

	j := &job.DiscJob{ID: 2, ContentType: job.ContentMovie, DetectedTitle: "Inception"}
	title := &job.DiscTitle{ID: 1, TitleIndex: 1, State: job.TitleRipping}

	final, err := org.Place(context.Background(), j, title, source)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	want := filepath.Join(cfg.Paths.LibraryDir, cfg.Library.MoviesDir, "Inception", "Inception.mkv")
	if final != want {
		t.Fatalf("expected %s, got %s", want, final)
	}
}

func TestPlaceReviewTitleGoesToReviewDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	source := filepath.Join(cfg.Paths.StagingDir, "title_05.mkv")
	testsupport.WriteFile(t, source, 64)

	j := &job.DiscJob{ID: 7, ContentType: job.ContentTV, DetectedTitle: "My Show"}
	title := &job.DiscTitle{ID: 5, TitleIndex: 5, State: job.TitleReview}

	final, err := org.Place(context.Background(), j, title, source)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	want := filepath.Join(cfg.Paths.ReviewDir, "job-7", "title_05.mkv")
	if final != want {
		t.Fatalf("expected review path %s, got %s", want, final)
	}
}

func TestPlaceConflictPicksNumberedName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	j := &job.DiscJob{ID: 3, ContentType: job.ContentMovie, DetectedTitle: "Dune"}
	title := &job.DiscTitle{ID: 1, TitleIndex: 1, State: job.TitleRipping}

	existing := filepath.Join(cfg.Paths.LibraryDir, cfg.Library.MoviesDir, "Dune", "Dune.mkv")
	testsupport.WriteFile(t, existing, 32)

	source := filepath.Join(cfg.Paths.StagingDir, "title_01.mkv")
	testsupport.WriteFile(t, source, 64)

	final, err := org.Place(context.Background(), j, title, source)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	want := filepath.Join(cfg.Paths.LibraryDir, cfg.Library.MoviesDir, "Dune", "Dune (1).mkv")
	if final != want {
		t.Fatalf("expected numbered name %s, got %s", want, final)
	}
}

func TestPlaceConflictOverwrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Library.OverwriteExisting = true
	org := organizer.New(cfg, nil)

	j := &job.DiscJob{ID: 3, ContentType: job.ContentMovie, DetectedTitle: "Dune"}
	title := &job.DiscTitle{ID: 1, TitleIndex: 1, State: job.TitleRipping}

	existing := filepath.Join(cfg.Paths.LibraryDir, cfg.Library.MoviesDir, "Dune", "Dune.mkv")
	testsupport.WriteFile(t, existing, 32)

	source := filepath.Join(cfg.Paths.StagingDir, "title_01.mkv")
	testsupport.WriteFile(t, source, 64)

	final, err := org.Place(context.Background(), j, title, source)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if final != existing {
		t.Fatalf("expected overwrite at %s, got %s", existing, final)
	}
	info, err := os.Stat(final)
	if err != nil {
		t.Fatalf("stat final: %v", err)
	}
	if info.Size() != 64 {
		t.Fatalf("expected replaced file size 64, got %d", info.Size())
	}
}

func TestPlaceRejectsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	j := &job.DiscJob{ID: 4, ContentType: job.ContentMovie, DetectedTitle: "Gone"}
	title := &job.DiscTitle{ID: 1, TitleIndex: 1, State: job.TitleRipping}

	if _, err := org.Place(context.Background(), j, title, filepath.Join(cfg.Paths.StagingDir, "missing.mkv")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestPlaceSanitizesShowName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil)

	source := filepath.Join(cfg.Paths.StagingDir, "title_01.mkv")
	testsupport.WriteFile(t, source, 64)

	j := &job.DiscJob{ID: 5, ContentType: job.ContentTV, DetectedTitle: "What If...?: Season/One", DetectedSeason: 1}
	title := &job.DiscTitle{ID: 1, TitleIndex: 1, MatchedEpisode: "S01E01", State: job.TitleMatched}

	final, err := org.Place(context.Background(), j, title, source)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	show := "What If... Season One"
	want := filepath.Join(cfg.Paths.LibraryDir, cfg.Library.TVDir, show, "Season 01", show+" - S01E01.mkv")
	if final != want {
		t.Fatalf("expected sanitized path %s, got %s", want, final)
	}
}
