package job_test

import (
	"testing"

	"engram/internal/job"
)

func TestJobTransitionTable(t *testing.T) {
	allowed := []struct {
		from job.State
		to   job.State
	}{
		{job.StateIdle, job.StateIdentifying},
		{job.StateIdentifying, job.StateRipping},
		{job.StateIdentifying, job.StateReviewNeeded},
		{job.StateReviewNeeded, job.StateRipping},
		{job.StateRipping, job.StateMatching},
		{job.StateRipping, job.StateOrganizing},
		{job.StateMatching, job.StateOrganizing},
		{job.StateMatching, job.StateReviewNeeded},
		{job.StateOrganizing, job.StateCompleted},
		{job.StateIdle, job.StateFailed},
		{job.StateOrganizing, job.StateFailed},
	}
	for _, tc := range allowed {
		if !job.CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	rejected := []struct {
		from job.State
		to   job.State
	}{
		{job.StateIdle, job.StateRipping},
		{job.StateIdle, job.StateMatching},
		{job.StateIdentifying, job.StateOrganizing},
		{job.StateMatching, job.StateRipping},
		{job.StateCompleted, job.StateFailed},
		{job.StateFailed, job.StateIdentifying},
		{job.StateFailed, job.StateCompleted},
	}
	for _, tc := range rejected {
		if job.CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestSameStateTransitionAllowed(t *testing.T) {
	for _, state := range job.AllStates() {
		if !job.CanTransition(state, state) {
			t.Errorf("expected %s -> %s to be allowed", state, state)
		}
	}
	if job.CanTransition("bogus", "bogus") {
		t.Error("expected unknown same-state transition to be rejected")
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, terminal := range []job.State{job.StateCompleted, job.StateFailed} {
		for _, to := range job.AllStates() {
			if to == terminal {
				continue
			}
			if job.CanTransition(terminal, to) {
				t.Errorf("terminal state %s must not transition to %s", terminal, to)
			}
		}
	}
}

func TestTitleTransitionTable(t *testing.T) {
	if !job.CanTransitionTitle(job.TitlePending, job.TitleRipping) {
		t.Error("expected pending -> ripping")
	}
	if !job.CanTransitionTitle(job.TitleRipping, job.TitleMatching) {
		t.Error("expected ripping -> matching")
	}
	if !job.CanTransitionTitle(job.TitleMatching, job.TitleMatched) {
		t.Error("expected matching -> matched")
	}
	if !job.CanTransitionTitle(job.TitleMatching, job.TitleReview) {
		t.Error("expected matching -> review")
	}
	if !job.CanTransitionTitle(job.TitleReview, job.TitleCompleted) {
		t.Error("expected review -> completed")
	}
	if job.CanTransitionTitle(job.TitlePending, job.TitleMatched) {
		t.Error("expected pending -> matched to be rejected")
	}
	if job.CanTransitionTitle(job.TitleCompleted, job.TitleFailed) {
		t.Error("expected completed -> failed to be rejected")
	}
	if job.CanTransitionTitle(job.TitleFailed, job.TitlePending) {
		t.Error("expected failed -> pending to be rejected")
	}
}

func TestParseState(t *testing.T) {
	state, ok := job.ParseState(" Ripping ")
	if !ok || state != job.StateRipping {
		t.Fatalf("ParseState: got %q, %v", state, ok)
	}
	if _, ok := job.ParseState("bogus"); ok {
		t.Fatal("expected unknown state to be rejected")
	}
	if _, ok := job.ParseState(""); ok {
		t.Fatal("expected empty state to be rejected")
	}
}

func TestParseContentType(t *testing.T) {
	if got := job.ParseContentType("TV"); got != job.ContentTV {
		t.Fatalf("expected tv, got %s", got)
	}
	if got := job.ParseContentType("movie"); got != job.ContentMovie {
		t.Fatalf("expected movie, got %s", got)
	}
	if got := job.ParseContentType("something else"); got != job.ContentUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
}

func TestTitleTerminalForAggregation(t *testing.T) {
	terminal := []job.TitleState{job.TitleMatched, job.TitleReview, job.TitleCompleted, job.TitleFailed}
	for _, state := range terminal {
		if !state.IsTerminal() {
			t.Errorf("expected %s to be terminal", state)
		}
	}
	for _, state := range []job.TitleState{job.TitlePending, job.TitleRipping, job.TitleMatching} {
		if state.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", state)
		}
	}
}
