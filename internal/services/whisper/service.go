package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"engram/internal/config"
	"engram/internal/matcher"
)

// Service transcribes audio chunks from ripped title files using a local
// whisper CLI. It satisfies the matcher's transcriber contract.
type Service struct {
	cfg           config.Subtitles
	ffmpegBinary  string
	workDir       string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

var _ matcher.Transcriber = (*Service)(nil)

// NewService creates a whisper transcription service. workDir holds the
// intermediate WAV and transcript files and must be writable.
func NewService(cfg config.Subtitles, ffmpegBinary, workDir string) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
		workDir:      workDir,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.WhisperModel
}

// Transcribe extracts the chunk's audio from source, runs whisper on it, and
// returns the plain transcript text. Intermediate files are removed before
// returning.
func (s *Service) Transcribe(ctx context.Context, source string, chunk matcher.Chunk) (string, error) {
	if source == "" {
		return "", fmt.Errorf("transcribe: source path required")
	}
	if s.workDir == "" {
		return "", fmt.Errorf("transcribe: work dir required")
	}
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return "", fmt.Errorf("transcribe: ensure work dir: %w", err)
	}

	wavPath := filepath.Join(s.workDir, fmt.Sprintf("chunk_%d_%d.wav", chunk.StartSeconds, chunk.LengthSeconds))
	defer os.Remove(wavPath)

	if err := s.extract(ctx, source, chunk, wavPath); err != nil {
		return "", err
	}

	textPath := strings.TrimSuffix(wavPath, ".wav") + ".txt"
	defer os.Remove(textPath)

	if err := s.run(ctx, s.cfg.WhisperBinary, s.buildArgs(wavPath)...); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	data, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("whisper: read transcript: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Service) extract(ctx context.Context, source string, chunk matcher.Chunk, dest string) error {
	if s.commandRunner != nil {
		args := buildExtractArgs(source, chunk.StartSeconds, chunk.LengthSeconds, dest)
		return s.commandRunner(ctx, s.ffmpegBinary, args...)
	}
	return ExtractSegment(ctx, s.ffmpegBinary, source, chunk.StartSeconds, chunk.LengthSeconds, dest)
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs constructs the whisper CLI arguments for a chunk WAV file.
func (s *Service) buildArgs(wavPath string) []string {
	args := []string{
		wavPath,
		"--model", s.cfg.WhisperModel,
		"--output_dir", s.workDir,
		"--output_format", "txt",
		"--task", "transcribe",
	}
	if len(s.cfg.Languages) > 0 {
		if lang := strings.TrimSpace(s.cfg.Languages[0]); lang != "" {
			args = append(args, "--language", lang)
		}
	}
	return args
}
