package organizer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"engram/internal/config"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/services"
	"engram/internal/subtitles"
)

// Organizer moves ripped files into their final library location.
type Organizer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an Organizer over the configured library roots.
func New(cfg *config.Config, logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Organizer{cfg: cfg, logger: logging.NewComponentLogger(logger, "organizer")}
}

// Place files one title's ripped output into the library (or the review
// directory when the title needs human attention) and returns the final path.
func (o *Organizer) Place(ctx context.Context, j *job.DiscJob, t *job.DiscTitle, sourcePath string) (string, error) {
	logger := logging.WithContext(ctx, o.logger)
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return "", services.Wrap(
			services.ErrValidation,
			"organizing",
			"validate inputs",
			"no ripped file present for organization",
			nil,
		)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return "", services.Wrap(
			services.ErrValidation,
			"organizing",
			"validate inputs",
			fmt.Sprintf("ripped file missing: %s", sourcePath),
			err,
		)
	}

	dest, err := o.destinationPath(j, t, sourcePath)
	if err != nil {
		return "", err
	}
	dest, err = o.resolveConflict(dest)
	if err != nil {
		return "", err
	}
	if err := moveFile(sourcePath, dest); err != nil {
		return "", services.Wrap(
			services.ErrExternalTool,
			"organizing",
			"move file",
			fmt.Sprintf("failed to place %s", filepath.Base(sourcePath)),
			err,
		)
	}

	logger.Info("title filed",
		logging.Args(
			logging.Int64("title_id", t.ID),
			logging.String("final_file", dest),
		)...)
	return dest, nil
}

// destinationPath builds the library path for a title. Review titles and
// anything without a usable name land in the review directory instead.
func (o *Organizer) destinationPath(j *job.DiscJob, t *job.DiscTitle, sourcePath string) (string, error) {
	ext := filepath.Ext(sourcePath)
	if ext == "" {
		ext = ".mkv"
	}

	show := sanitizeFileName(j.DetectedTitle)
	if t.State == job.TitleReview || show == "" {
		name := strings.TrimSpace(t.OutputFilename)
		if name == "" {
			name = filepath.Base(sourcePath)
		}
		return filepath.Join(o.cfg.Paths.ReviewDir, fmt.Sprintf("job-%d", j.ID), name), nil
	}

	switch j.ContentType {
	case job.ContentTV:
		episode := strings.TrimSpace(t.MatchedEpisode)
		if episode == "" {
			return "", services.Wrap(
				services.ErrValidation,
				"organizing",
				"build path",
				fmt.Sprintf("title %d has no matched episode", t.TitleIndex),
				nil,
			)
		}
		season := j.DetectedSeason
		if parsedSeason, _, ok := subtitles.ParseEpisodeCode(episode); ok {
			season = parsedSeason
		}
		return filepath.Join(
			o.cfg.Paths.LibraryDir,
			o.cfg.Library.TVDir,
			show,
			fmt.Sprintf("Season %02d", season),
			fmt.Sprintf("%s - %s%s", show, episode, ext),
		), nil
	case job.ContentMovie:
		return filepath.Join(
			o.cfg.Paths.LibraryDir,
			o.cfg.Library.MoviesDir,
			show,
			show+ext,
		), nil
	default:
		return "", services.Wrap(
			services.ErrValidation,
			"organizing",
			"build path",
			fmt.Sprintf("cannot organize content type %q", j.ContentType),
			nil,
		)
	}
}

// resolveConflict applies the configured overwrite policy: replace the
// existing file, or pick a numbered sibling name.
func (o *Organizer) resolveConflict(dest string) (string, error) {
	if _, err := os.Stat(dest); err != nil {
		if os.IsNotExist(err) {
			return dest, nil
		}
		return "", fmt.Errorf("stat destination: %w", err)
	}
	if o.cfg.Library.OverwriteExisting {
		return dest, nil
	}

	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(dest, ext)
	for i := 1; i < 100; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free destination name for %s", dest)
}

// sanitizeFileName strips characters that are hostile to common filesystems.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// moveFile renames when possible and falls back to a verified copy when the
// library lives on a different filesystem.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies a file from src to dst, verifying both size and content hash.
func copyFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
