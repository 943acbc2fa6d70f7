package reference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"engram/internal/logging"
	"engram/internal/services"
	"engram/internal/subtitles"
)

// Provider resolves a local directory of reference subtitles for a show
// season. The returned directory contains one SRT file per episode, named
// with episode codes.
type Provider interface {
	Fetch(ctx context.Context, show string, season int) (string, error)
}

// LocalProvider serves reference subtitles from a pre-populated source
// directory, staging season matches into the subtitle cache so repeated
// discs of the same season skip the scan.
type LocalProvider struct {
	sourceDir string
	cacheDir  string
	logger    *slog.Logger
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates a provider reading from sourceDir and staging
// into cacheDir.
func NewLocalProvider(sourceDir, cacheDir string, logger *slog.Logger) *LocalProvider {
	return &LocalProvider{
		sourceDir: sourceDir,
		cacheDir:  cacheDir,
		logger:    logging.NewComponentLogger(logger, "reference"),
	}
}

// Fetch returns a directory holding the season's reference SRT files,
// copying them from the source directory on first use. It reports
// services.ErrNotFound when the source has no subtitles for the season.
func (p *LocalProvider) Fetch(ctx context.Context, show string, season int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	show = strings.TrimSpace(show)
	if show == "" {
		return "", services.Wrap(services.ErrValidation, "matching", "fetch subtitles", "show name required", nil)
	}
	if season <= 0 {
		return "", services.Wrap(services.ErrValidation, "matching", "fetch subtitles", fmt.Sprintf("invalid season %d", season), nil)
	}
	if strings.TrimSpace(p.sourceDir) == "" {
		return "", services.Wrap(services.ErrConfiguration, "matching", "fetch subtitles", "subtitle source directory not configured", nil)
	}

	cacheDir := filepath.Join(p.cacheDir, sanitizeDirName(show), fmt.Sprintf("Season %02d", season))
	if cached, err := countSeasonFiles(cacheDir, season); err == nil && cached > 0 {
		p.logger.Debug("subtitle cache hit",
			logging.Args(
				logging.String("show", show),
				logging.Int("season", season),
				logging.Int("files", cached),
			)...)
		return cacheDir, nil
	}

	sourceDir, err := p.findSeasonSource(show)
	if err != nil {
		return "", err
	}
	copied, err := p.stageSeason(sourceDir, cacheDir, season)
	if err != nil {
		return "", err
	}
	if copied == 0 {
		return "", services.Wrap(services.ErrNotFound, "matching", "fetch subtitles",
			fmt.Sprintf("no reference subtitles for %s season %d", show, season), nil)
	}

	p.logger.Info("reference subtitles staged",
		logging.Args(
			logging.String("show", show),
			logging.Int("season", season),
			logging.Int("files", copied),
		)...)
	return cacheDir, nil
}

// findSeasonSource locates the show's subtitle directory under the source
// root. A directory whose name matches the show (case-insensitive) wins;
// otherwise the root itself is searched flat.
func (p *LocalProvider) findSeasonSource(show string) (string, error) {
	entries, err := os.ReadDir(p.sourceDir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "matching", "fetch subtitles", "read subtitle source directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), show) {
			return filepath.Join(p.sourceDir, entry.Name()), nil
		}
	}
	return p.sourceDir, nil
}

// stageSeason copies season-matching SRT files into the cache directory,
// renaming each to its bare episode code.
func (p *LocalProvider) stageSeason(sourceDir, cacheDir string, season int) (int, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return 0, services.Wrap(services.ErrNotFound, "matching", "fetch subtitles", "read subtitle source directory", err)
	}
	copied := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".srt") {
			continue
		}
		fileSeason, episode, ok := subtitles.ParseEpisodeCode(entry.Name())
		if !ok || fileSeason != season {
			continue
		}
		if copied == 0 {
			if err := os.MkdirAll(cacheDir, 0o755); err != nil {
				return 0, fmt.Errorf("create subtitle cache dir: %w", err)
			}
		}
		dest := filepath.Join(cacheDir, subtitles.FormatEpisodeCode(fileSeason, episode)+".srt")
		if err := copyFile(filepath.Join(sourceDir, entry.Name()), dest); err != nil {
			return 0, fmt.Errorf("stage subtitle file: %w", err)
		}
		copied++
	}
	return copied, nil
}

func countSeasonFiles(dir string, season int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".srt") {
			continue
		}
		if fileSeason, _, ok := subtitles.ParseEpisodeCode(entry.Name()); ok && fileSeason == season {
			count++
		}
	}
	return count, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func sanitizeDirName(name string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return ' '
		default:
			return r
		}
	}, name)
	return strings.Join(strings.Fields(replaced), " ")
}
