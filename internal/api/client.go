package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"engram/internal/events"
)

// Client talks to a running daemon over its control API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given bind address ("host:port" or a
// full URL).
func NewClient(bind string) *Client {
	base := strings.TrimSpace(bind)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Available reports whether the client has an address to talk to.
func (c *Client) Available() bool {
	return c != nil && c.baseURL != ""
}

// Status fetches daemon runtime state.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var status DaemonStatus
	if err := c.get(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Jobs lists jobs, optionally filtered by state names.
func (c *Client) Jobs(ctx context.Context, states ...string) ([]JobSummary, error) {
	path := "/api/jobs"
	if len(states) > 0 {
		values := url.Values{}
		for _, state := range states {
			values.Add("state", state)
		}
		path += "?" + values.Encode()
	}
	var resp JobListResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Job fetches a single job with its titles.
func (c *Client) Job(ctx context.Context, id int64) (*JobSummary, error) {
	var resp JobResponse
	if err := c.get(ctx, fmt.Sprintf("/api/jobs/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// Resolve supplies review input for a parked job and resumes it.
func (c *Client) Resolve(ctx context.Context, id int64, req ResolveRequest) error {
	return c.post(ctx, fmt.Sprintf("/api/jobs/%d/resolve", id), req, nil)
}

// Cancel stops a job, cascading to any in-flight work.
func (c *Client) Cancel(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/api/jobs/%d/cancel", id), nil, nil)
}

// Events fetches pipeline events after the given cursor. With wait set the
// daemon blocks until new events arrive or the context expires.
func (c *Client) Events(ctx context.Context, since uint64, limit int, wait bool) ([]events.Event, uint64, error) {
	values := url.Values{}
	values.Set("since", strconv.FormatUint(since, 10))
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if wait {
		values.Set("wait", "1")
	}
	var resp EventsResponse
	if err := c.get(ctx, "/api/events?"+values.Encode(), &resp); err != nil {
		return nil, 0, err
	}
	return resp.Events, resp.Next, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.Available() {
		return fmt.Errorf("daemon api address not configured")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon api: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon api: unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
