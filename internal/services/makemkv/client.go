package makemkv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"engram/internal/classifier"
	"engram/internal/config"
	"engram/internal/job"
	"engram/internal/logging"
)

// Executor abstracts makemkvcon invocation so tests can substitute canned
// output. Every stdout and stderr line is forwarded to onLine in order.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor.
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client drives makemkvcon for disc scanning and title ripping.
type Client struct {
	binary     string
	ripTimeout time.Duration
	exec       Executor
	logger     *slog.Logger
}

// New constructs a client from drive configuration.
func New(cfg config.Drive, logger *slog.Logger) (*Client, error) {
	return NewWithOptions(cfg, logger)
}

// NewWithOptions constructs a client with overrides applied.
func NewWithOptions(cfg config.Drive, logger *slog.Logger, opts ...Option) (*Client, error) {
	binary := strings.TrimSpace(cfg.MakemkvBinary)
	if binary == "" {
		return nil, errors.New("makemkv binary not configured")
	}
	client := &Client{
		binary:     binary,
		ripTimeout: time.Duration(cfg.RipTimeout) * time.Second,
		exec:       commandExecutor{},
		logger:     logging.NewComponentLogger(logger, "makemkv"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Scan runs a robot-mode info pass against the drive and returns one track
// per disc title.
func (c *Client) Scan(ctx context.Context, driveID string) ([]classifier.Track, error) {
	driveID = strings.TrimSpace(driveID)
	if driveID == "" {
		return nil, errors.New("drive id required")
	}

	var lines []string
	args := []string{"-r", "--cache=1", "info", deviceArg(driveID), "--robot"}
	if err := c.exec.Run(ctx, c.binary, args, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		return nil, fmt.Errorf("makemkv info %s: %w", driveID, err)
	}

	output := strings.Join(lines, "\n")
	if strings.TrimSpace(output) == "" {
		return nil, errors.New("makemkv produced empty scan output")
	}
	tracks := parseScanOutput(output)
	if len(tracks) == 0 {
		return nil, errors.New("makemkv reported no titles")
	}
	c.logger.Debug("disc scan complete", logging.Args(
		logging.String(logging.FieldDriveID, driveID),
		logging.Int("titles", len(tracks)),
	)...)
	return tracks, nil
}

// Rip extracts one title into destDir and returns the path of the resulting
// file, named title_NN.mkv after the title index so resumed jobs can rebuild
// staging paths.
func (c *Client) Rip(ctx context.Context, driveID string, title *job.DiscTitle, destDir string) (string, error) {
	driveID = strings.TrimSpace(driveID)
	if driveID == "" {
		return "", errors.New("drive id required")
	}
	if title == nil {
		return "", errors.New("title required")
	}
	if strings.TrimSpace(destDir) == "" {
		return "", errors.New("destination directory required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	ripCtx := ctx
	if c.ripTimeout > 0 {
		var cancel context.CancelFunc
		ripCtx, cancel = context.WithTimeout(ctx, c.ripTimeout)
		defer cancel()
	}

	lastLogged := -10.0
	args := []string{"--robot", "--progress=-same", "mkv", deviceArg(driveID), strconv.Itoa(title.TitleIndex), destDir}
	if err := c.exec.Run(ripCtx, c.binary, args, func(line string) {
		percent, ok := parseProgress(line)
		if !ok || percent < lastLogged+10 {
			return
		}
		lastLogged = percent
		c.logger.Debug("rip progress", logging.Args(
			logging.String(logging.FieldDriveID, driveID),
			logging.Int("title_index", title.TitleIndex),
			logging.Float64("percent", percent),
		)...)
	}); err != nil {
		return "", fmt.Errorf("makemkv rip title %d: %w", title.TitleIndex, err)
	}

	produced, err := findRipOutput(destDir, title.TitleIndex)
	if err != nil {
		return "", err
	}
	destPath := filepath.Join(destDir, fmt.Sprintf("title_%02d.mkv", title.TitleIndex))
	if produced != destPath {
		if err := os.Rename(produced, destPath); err != nil {
			return "", fmt.Errorf("rename rip output: %w", err)
		}
	}
	return destPath, nil
}

// findRipOutput locates the file makemkvcon wrote for a title. The expected
// name is title_tNN.mkv; when absent the newest mkv in the directory wins,
// which covers discs whose title numbering differs from the scan order.
func findRipOutput(destDir string, titleIndex int) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("inspect rip outputs: %w", err)
	}

	expected := strings.ToLower(fmt.Sprintf("title_t%02d.mkv", titleIndex))
	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".mkv") {
			continue
		}
		path := filepath.Join(destDir, entry.Name())
		if strings.ToLower(entry.Name()) == expected {
			return path, nil
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", errors.New("makemkv produced no output file; check disc for read errors")
	}
	return newest, nil
}

func deviceArg(driveID string) string {
	if strings.HasPrefix(driveID, "dev:") || strings.HasPrefix(driveID, "disc:") {
		return driveID
	}
	return "dev:" + driveID
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
