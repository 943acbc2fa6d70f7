package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"engram/internal/api"
	"engram/internal/config"
)

func testContext(t *testing.T, handler http.HandlerFunc) *commandContext {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.API.Bind = server.URL
	return &commandContext{cfg: &cfg}
}

func TestJobsCommandRendersTable(t *testing.T) {
	ctx := testContext(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.JobSummary{
			{
				ID:            3,
				DriveID:       "/dev/sr0",
				VolumeLabel:   "TEST_SHOW_S1D1",
				ContentType:   "tv",
				State:         "matching",
				DetectedTitle: "Test Show",
				UpdatedAt:     time.Now(),
			},
		}})
	})

	cmd := newJobsCommand(ctx)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("jobs: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Test Show", "matching", "/dev/sr0"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestJobsShowRendersTitles(t *testing.T) {
	ctx := testContext(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.JobResponse{Job: api.JobSummary{
			ID:           5,
			State:        "review_needed",
			ContentType:  "tv",
			VolumeLabel:  "LOGICAL_VOLUME_ID",
			DriveID:      "/dev/sr0",
			ReviewReason: "name undetected",
			Titles: []api.TitleSummary{
				{TitleIndex: 1, State: "pending", DurationSeconds: 1290},
			},
		}})
	})

	cmd := newJobsCommand(ctx)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"show", "5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Job #5", "name undetected", "0:21:30"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestResolveCommandPostsRequest(t *testing.T) {
	var received api.ResolveRequest
	ctx := testContext(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs/7/resolve" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusNoContent)
	})

	cmd := newResolveCommand(ctx)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"7", "--name", "Test Show", "--season", "2", "--type", "tv", "--titles", "2,5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if received.Name != "Test Show" || received.Season != 2 || received.ContentType != "tv" {
		t.Fatalf("unexpected request body: %+v", received)
	}
	if len(received.Titles) != 2 || received.Titles[0] != 2 || received.Titles[1] != 5 {
		t.Fatalf("unexpected title selection: %v", received.Titles)
	}
	if !strings.Contains(buf.String(), "resumed") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestCancelCommandSurfacesAPIError(t *testing.T) {
	ctx := testContext(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job 2 is already completed"})
	})

	cmd := newCancelCommand(ctx)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"2"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "already completed") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestRenderTablePadsRows(t *testing.T) {
	output := renderTable(
		[]string{"A", "B"},
		[][]string{{"1"}},
		[]columnAlignment{alignRight, alignLeft},
	)
	if !strings.Contains(output, "A") || !strings.Contains(output, "1") {
		t.Fatalf("unexpected table output:\n%s", output)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := fmtSeconds(5400); got != "1:30:00" {
		t.Errorf("fmtSeconds(5400) = %q", got)
	}
	if got := fmtSeconds(0); got != "-" {
		t.Errorf("fmtSeconds(0) = %q", got)
	}
	if got := fmtConfidence(0.914); got != "0.91" {
		t.Errorf("fmtConfidence = %q", got)
	}
	if got := fmtConfidence(0); got != "-" {
		t.Errorf("fmtConfidence(0) = %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(buf.String(), "engram") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
