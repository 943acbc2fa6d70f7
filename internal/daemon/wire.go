package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"log/slog"

	"engram/internal/config"
	"engram/internal/logging"
	"engram/internal/notifications"
	"engram/internal/organizer"
	"engram/internal/sentinel"
	"engram/internal/services/makemkv"
	"engram/internal/services/reference"
	"engram/internal/services/tmdb"
	"engram/internal/services/whisper"
	"engram/internal/store"
	"engram/internal/workflow"
)

// Build wires the full daemon from configuration: store, collaborators,
// workflow manager, and disc monitor.
func Build(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ripper, err := makemkv.New(cfg.Drive, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("makemkv client: %w", err)
	}

	deps := workflow.Dependencies{
		Ripper:      ripper,
		Organizer:   organizer.New(cfg, logger),
		Transcriber: whisper.NewService(cfg.Subtitles, cfg.FFmpegBinary(), filepath.Join(cfg.Paths.StagingDir, "transcribe")),
		Notifier:    notifications.NewService(cfg),
	}
	if cfg.Subtitles.Enabled {
		deps.Subtitles = reference.NewLocalProvider(cfg.Subtitles.SourceDir, cfg.Paths.SubtitleCacheDir, logger)
	}
	if cfg.TMDB.APIKey != "" {
		client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
		if err != nil {
			logger.Warn("tmdb client unavailable", logging.Args(logging.Error(err))...)
		} else {
			deps.Metadata = client
		}
	}
	if cfg.Drive.EjectOnComplete {
		deps.Ejector = sentinel.NewTrayEjector(logger)
	}

	manager := workflow.NewManager(cfg, st, logger, deps)

	monitor := sentinel.NewMonitor(cfg.Drive, logger, func(ctx context.Context, device, label string) error {
		if _, err := sentinel.WaitForDisc(ctx, device); err != nil {
			return err
		}
		_, err := manager.HandleDiscInserted(ctx, device, label)
		if errors.Is(err, store.ErrDriveBusy) {
			return nil
		}
		return err
	})

	return New(cfg, st, logger, manager, monitor)
}
