package job_test

import (
	"strings"
	"testing"

	"engram/internal/job"
)

func newJobInState(t *testing.T, state job.State) *job.DiscJob {
	t.Helper()
	j := job.NewDiscJob("sr0", "SHOW_S1_D1")
	j.ID = 1
	path := map[job.State][]job.State{
		job.StateIdle:         nil,
		job.StateIdentifying:  {job.StateIdentifying},
		job.StateReviewNeeded: {job.StateIdentifying, job.StateReviewNeeded},
		job.StateRipping:      {job.StateIdentifying, job.StateRipping},
		job.StateMatching:     {job.StateIdentifying, job.StateRipping, job.StateMatching},
		job.StateOrganizing:   {job.StateIdentifying, job.StateRipping, job.StateMatching, job.StateOrganizing},
	}[state]
	for _, next := range path {
		if err := j.Transition(next); err != nil {
			t.Fatalf("setup transition to %s: %v", next, err)
		}
	}
	return j
}

func TestJobTransitionRejectsInvalidEdge(t *testing.T) {
	j := newJobInState(t, job.StateIdle)
	err := j.Transition(job.StateOrganizing)
	if err == nil {
		t.Fatal("expected error for idle -> organizing")
	}
	if !strings.Contains(err.Error(), "invalid transition") {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.State != job.StateIdle {
		t.Fatalf("state mutated on rejected transition: %s", j.State)
	}
}

func TestFailCascadesToNonTerminalTitles(t *testing.T) {
	j := newJobInState(t, job.StateMatching)
	matched := &job.DiscTitle{TitleIndex: 1, State: job.TitleMatched}
	inflight := &job.DiscTitle{TitleIndex: 2, State: job.TitleMatching}
	pending := &job.DiscTitle{TitleIndex: 3, State: job.TitlePending}
	j.Titles = []*job.DiscTitle{matched, inflight, pending}

	if err := j.Fail("ripper crashed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if j.State != job.StateFailed {
		t.Fatalf("expected failed, got %s", j.State)
	}
	if j.ErrorMessage != "ripper crashed" {
		t.Fatalf("expected reason recorded, got %q", j.ErrorMessage)
	}
	if matched.State != job.TitleMatched {
		t.Fatalf("terminal title must not be touched, got %s", matched.State)
	}
	if inflight.State != job.TitleFailed || pending.State != job.TitleFailed {
		t.Fatalf("expected cascade to fail in-flight titles, got %s and %s", inflight.State, pending.State)
	}
	if inflight.ErrorMessage == "" {
		t.Fatal("expected cascade to record a failure reason")
	}
}

func TestFailRejectsTerminalJob(t *testing.T) {
	j := newJobInState(t, job.StateOrganizing)
	if err := j.Transition(job.StateCompleted); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := j.Fail("late cancel"); err == nil {
		t.Fatal("expected error failing a completed job")
	}
	if j.State != job.StateCompleted {
		t.Fatalf("completed job mutated: %s", j.State)
	}
}

func TestFailDefaultsReason(t *testing.T) {
	j := newJobInState(t, job.StateRipping)
	if err := j.Fail("  "); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if j.ErrorMessage == "" {
		t.Fatal("expected a default failure reason")
	}
}

func TestMarkReviewRecordsReason(t *testing.T) {
	j := newJobInState(t, job.StateIdentifying)
	if err := j.MarkReview("generic_label"); err != nil {
		t.Fatalf("MarkReview: %v", err)
	}
	if j.State != job.StateReviewNeeded {
		t.Fatalf("expected review_needed, got %s", j.State)
	}
	if j.ReviewReason != "generic_label" {
		t.Fatalf("expected reason recorded, got %q", j.ReviewReason)
	}
}

func TestTitlesTerminalAggregation(t *testing.T) {
	j := newJobInState(t, job.StateMatching)
	if !j.TitlesTerminal() {
		t.Fatal("job with no titles should count as terminal")
	}
	j.Titles = []*job.DiscTitle{
		{TitleIndex: 1, State: job.TitleMatched},
		{TitleIndex: 2, State: job.TitleReview},
		{TitleIndex: 3, State: job.TitleFailed},
	}
	if !j.TitlesTerminal() {
		t.Fatal("matched/review/failed titles should all count as terminal")
	}
	j.Titles = append(j.Titles, &job.DiscTitle{TitleIndex: 4, State: job.TitleMatching})
	if j.TitlesTerminal() {
		t.Fatal("in-flight title should block aggregation")
	}
}

func TestSetMatchRoutesToMatchedOrReview(t *testing.T) {
	title := &job.DiscTitle{TitleIndex: 1, State: job.TitleMatching}
	details := &job.MatchDetails{VoteCount: 5, FileCoverage: 0.8, ScoreGap: 0.1}
	if err := title.SetMatch("S01E03", 0.91, details, true); err != nil {
		t.Fatalf("SetMatch: %v", err)
	}
	if title.State != job.TitleMatched || title.MatchedEpisode != "S01E03" {
		t.Fatalf("expected matched S01E03, got %s %q", title.State, title.MatchedEpisode)
	}

	weak := &job.DiscTitle{TitleIndex: 2, State: job.TitleMatching}
	if err := weak.SetMatch("S01E05", 0.62, nil, false); err != nil {
		t.Fatalf("SetMatch: %v", err)
	}
	if weak.State != job.TitleReview {
		t.Fatalf("expected review, got %s", weak.State)
	}

	idle := &job.DiscTitle{TitleIndex: 3, State: job.TitlePending}
	if err := idle.SetMatch("S01E01", 0.9, nil, true); err == nil {
		t.Fatal("expected error matching a pending title")
	}
}

func TestSelectedTitles(t *testing.T) {
	j := newJobInState(t, job.StateIdle)
	j.Titles = []*job.DiscTitle{
		{TitleIndex: 1, IsSelected: true},
		{TitleIndex: 2},
		{TitleIndex: 3, IsSelected: true},
	}
	selected := j.SelectedTitles()
	if len(selected) != 2 || selected[0].TitleIndex != 1 || selected[1].TitleIndex != 3 {
		t.Fatalf("unexpected selection: %+v", selected)
	}
}
