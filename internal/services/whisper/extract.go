package whisper

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExtractSegment extracts a time-range segment of audio from a source file.
// startSec is the start time in seconds, durationSec is the segment length.
// The output is a mono 16kHz WAV file suitable for Whisper.
func ExtractSegment(ctx context.Context, ffmpegBinary, source string, startSec, durationSec int, dest string) error {
	if durationSec <= 0 {
		return fmt.Errorf("extract segment: invalid duration %d", durationSec)
	}
	args := buildExtractArgs(source, startSec, durationSec, dest)
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract segment: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildExtractArgs constructs ffmpeg arguments for segment extraction. The
// first audio stream is selected; video, subtitle, and data streams are
// dropped and the output is downmixed to mono 16kHz PCM.
func buildExtractArgs(source string, startSec, durationSec int, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%d", startSec),
		"-t", fmt.Sprintf("%d", durationSec),
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}
