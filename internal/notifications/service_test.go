package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"engram/internal/config"
	"engram/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRipCompleted(context.Background(), "Example"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "disc detected",
			send: func(svc notifications.Service) error {
				return svc.NotifyDiscDetected(context.Background(), "BLADE_RUNNER", "/dev/sr0")
			},
			expectTitle:   "Engram - Disc Detected",
			expectMessage: "Disc detected: BLADE_RUNNER (/dev/sr0)",
			expectTags:    "engram,disc,detected",
		},
		{
			name: "identification completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyIdentificationComplete(context.Background(), "The Office", "tv")
			},
			expectTitle:   "Engram - Identified",
			expectMessage: "Identified: The Office (tv)",
			expectTags:    "engram,identify,completed",
		},
		{
			name: "review required",
			send: func(svc notifications.Service) error {
				return svc.NotifyReviewRequired(context.Background(), "", "name undetected")
			},
			expectTitle:    "Engram - Review Needed",
			expectMessage:  "Review needed for unnamed disc: name undetected",
			expectTags:     "engram,review",
			expectPriority: "high",
		},
		{
			name: "episode matched",
			send: func(svc notifications.Service) error {
				return svc.NotifyEpisodeMatched(context.Background(), "Title 3", "S01E03", 0.91)
			},
			expectTitle:   "Engram - Episode Matched",
			expectMessage: "Matched Title 3 as S01E03 (91%)",
			expectTags:    "engram,match,completed",
		},
		{
			name: "match review",
			send: func(svc notifications.Service) error {
				return svc.NotifyMatchReview(context.Background(), "Title 5", "S01E04", "score gap too narrow")
			},
			expectTitle:    "Engram - Match Review",
			expectMessage:  "Match uncertain for Title 5: score gap too narrow\nBest candidate: S01E04",
			expectTags:     "engram,match,review",
			expectPriority: "high",
		},
		{
			name: "organization completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyOrganizationCompleted(context.Background(), "Arrival", "Arrival (2016).mkv")
			},
			expectTitle:   "Engram - Library Updated",
			expectMessage: "Added to library: Arrival\nFile: Arrival (2016).mkv",
			expectTags:    "engram,library,added",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("failed to read disc"), "rip")
			},
			expectTitle:    "Engram - Error",
			expectMessage:  "Error with rip: failed to read disc",
			expectTags:     "engram,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Rip = false
	cfg.Notifications.Matching = false
	cfg.Notifications.Review = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyRipStarted(ctx, "ignored"); err != nil {
		t.Fatalf("disabled rip notification errored: %v", err)
	}
	if err := svc.NotifyRipCompleted(ctx, "ignored"); err != nil {
		t.Fatalf("disabled rip notification errored: %v", err)
	}
	if err := svc.NotifyEpisodeMatched(ctx, "ignored", "S01E01", 0.9); err != nil {
		t.Fatalf("disabled matching notification errored: %v", err)
	}
	if err := svc.NotifyMatchReview(ctx, "ignored", "", "reason"); err != nil {
		t.Fatalf("disabled matching notification errored: %v", err)
	}
}

func TestNtfyServiceSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRipCompleted(context.Background(), "Example"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
