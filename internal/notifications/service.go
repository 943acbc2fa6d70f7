package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"engram/internal/config"
)

const userAgent = "Engram-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyDiscDetected(ctx context.Context, volumeLabel, driveID string) error
	NotifyIdentificationComplete(ctx context.Context, title, contentType string) error
	NotifyReviewRequired(ctx context.Context, title, reason string) error
	NotifyRipStarted(ctx context.Context, title string) error
	NotifyRipCompleted(ctx context.Context, title string) error
	NotifyEpisodeMatched(ctx context.Context, title, episode string, confidence float64) error
	NotifyMatchReview(ctx context.Context, title, episode, reason string) error
	NotifyOrganizationCompleted(ctx context.Context, title, finalFile string) error
	NotifyJobCompleted(ctx context.Context, title string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		prefs:    cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	prefs    config.Notifications
}

func (n *ntfyService) NotifyDiscDetected(ctx context.Context, volumeLabel, driveID string) error {
	if !n.prefs.Identification {
		return nil
	}
	volumeLabel = strings.TrimSpace(volumeLabel)
	if volumeLabel == "" {
		volumeLabel = "unlabeled disc"
	}
	data := payload{
		title:   "Engram - Disc Detected",
		message: fmt.Sprintf("Disc detected: %s (%s)", volumeLabel, strings.TrimSpace(driveID)),
		tags:    []string{"engram", "disc", "detected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyIdentificationComplete(ctx context.Context, title, contentType string) error {
	if !n.prefs.Identification {
		return nil
	}
	title = strings.TrimSpace(title)
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = "unknown"
	}
	data := payload{
		title:   "Engram - Identified",
		message: fmt.Sprintf("Identified: %s (%s)", title, contentType),
		tags:    []string{"engram", "identify", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewRequired(ctx context.Context, title, reason string) error {
	if !n.prefs.Review {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "unnamed disc"
	}
	data := payload{
		title:    "Engram - Review Needed",
		message:  fmt.Sprintf("Review needed for %s: %s", title, strings.TrimSpace(reason)),
		tags:     []string{"engram", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRipStarted(ctx context.Context, title string) error {
	if !n.prefs.Rip {
		return nil
	}
	data := payload{
		title:   "Engram - Rip Started",
		message: fmt.Sprintf("Started ripping: %s", strings.TrimSpace(title)),
		tags:    []string{"engram", "rip", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRipCompleted(ctx context.Context, title string) error {
	if !n.prefs.Rip {
		return nil
	}
	data := payload{
		title:   "Engram - Rip Complete",
		message: fmt.Sprintf("Rip complete: %s", strings.TrimSpace(title)),
		tags:    []string{"engram", "rip", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEpisodeMatched(ctx context.Context, title, episode string, confidence float64) error {
	if !n.prefs.Matching {
		return nil
	}
	data := payload{
		title:   "Engram - Episode Matched",
		message: fmt.Sprintf("Matched %s as %s (%.0f%%)", strings.TrimSpace(title), episode, confidence*100),
		tags:    []string{"engram", "match", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMatchReview(ctx context.Context, title, episode, reason string) error {
	if !n.prefs.Matching && !n.prefs.Review {
		return nil
	}
	message := fmt.Sprintf("Match uncertain for %s: %s", strings.TrimSpace(title), strings.TrimSpace(reason))
	if episode = strings.TrimSpace(episode); episode != "" {
		message = fmt.Sprintf("%s\nBest candidate: %s", message, episode)
	}
	data := payload{
		title:    "Engram - Match Review",
		message:  message,
		tags:     []string{"engram", "match", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOrganizationCompleted(ctx context.Context, title, finalFile string) error {
	if !n.prefs.Organization {
		return nil
	}
	title = strings.TrimSpace(title)
	finalFile = strings.TrimSpace(finalFile)
	message := fmt.Sprintf("Added to library: %s", title)
	if finalFile != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, finalFile)
	}
	data := payload{
		title:   "Engram - Library Updated",
		message: message,
		tags:    []string{"engram", "library", "added"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title string) error {
	if !n.prefs.Organization {
		return nil
	}
	data := payload{
		title:    "Engram - Complete",
		message:  fmt.Sprintf("Ready to watch: %s", strings.TrimSpace(title)),
		tags:     []string{"engram", "workflow", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.prefs.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Engram - Error",
		message:  builder.String(),
		tags:     []string{"engram", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Engram - Test",
		message:  "Notification system test",
		tags:     []string{"engram", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDiscDetected(context.Context, string, string) error           { return nil }
func (noopService) NotifyIdentificationComplete(context.Context, string, string) error { return nil }
func (noopService) NotifyReviewRequired(context.Context, string, string) error         { return nil }
func (noopService) NotifyRipStarted(context.Context, string) error                     { return nil }
func (noopService) NotifyRipCompleted(context.Context, string) error                   { return nil }
func (noopService) NotifyEpisodeMatched(context.Context, string, string, float64) error {
	return nil
}
func (noopService) NotifyMatchReview(context.Context, string, string, string) error   { return nil }
func (noopService) NotifyOrganizationCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyJobCompleted(context.Context, string) error                  { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
