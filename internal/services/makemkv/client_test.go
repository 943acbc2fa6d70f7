package makemkv_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"engram/internal/config"
	"engram/internal/job"
	"engram/internal/logging"
	"engram/internal/services/makemkv"
)

type fakeExecutor struct {
	lines    []string
	err      error
	binary   string
	args     []string
	onRun    func(args []string)
	runCount int
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string, onLine func(string)) error {
	f.runCount++
	f.binary = binary
	f.args = args
	if f.onRun != nil {
		f.onRun(args)
	}
	if f.err != nil {
		return f.err
	}
	for _, line := range f.lines {
		onLine(line)
	}
	return nil
}

func newClient(t *testing.T, exec *fakeExecutor) *makemkv.Client {
	t.Helper()
	cfg := config.Drive{MakemkvBinary: "makemkvcon", RipTimeout: 0}
	client, err := makemkv.NewWithOptions(cfg, logging.NewNop(), makemkv.WithExecutor(exec))
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	return client
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := makemkv.New(config.Drive{}, logging.NewNop()); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestScanParsesTracks(t *testing.T) {
	exec := &fakeExecutor{lines: []string{
		`CINFO:2,0,"TEST_SHOW_S1D1"`,
		`TINFO:0,2,0,"Episode 1"`,
		`TINFO:0,8,0,"6"`,
		`TINFO:0,9,0,"0:21:30"`,
		`TINFO:0,11,0,"1073741824"`,
		`TINFO:2,8,0,"2"`,
		`TINFO:2,9,0,"0:10:00"`,
		`TINFO:2,11,0,"268435456"`,
	}}
	client := newClient(t, exec)

	tracks, err := client.Scan(context.Background(), "/dev/sr0")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	first := tracks[0]
	if first.Index != 0 || first.DurationSeconds != 1290 || first.SizeBytes != 1073741824 || first.ChapterCount != 6 {
		t.Fatalf("unexpected first track: %+v", first)
	}
	if tracks[1].Index != 2 || tracks[1].DurationSeconds != 600 {
		t.Fatalf("unexpected second track: %+v", tracks[1])
	}

	if exec.binary != "makemkvcon" {
		t.Fatalf("unexpected binary %q", exec.binary)
	}
	joined := strings.Join(exec.args, " ")
	if !strings.Contains(joined, "info dev:/dev/sr0") || !strings.Contains(joined, "--robot") {
		t.Fatalf("unexpected scan args: %v", exec.args)
	}
}

func TestScanEmptyOutput(t *testing.T) {
	client := newClient(t, &fakeExecutor{})
	if _, err := client.Scan(context.Background(), "/dev/sr0"); err == nil {
		t.Fatal("expected error for empty scan output")
	}
}

func TestScanNoTitles(t *testing.T) {
	client := newClient(t, &fakeExecutor{lines: []string{`CINFO:2,0,"DISC"`}})
	if _, err := client.Scan(context.Background(), "/dev/sr0"); err == nil {
		t.Fatal("expected error when no titles found")
	}
}

func TestScanCommandFailure(t *testing.T) {
	client := newClient(t, &fakeExecutor{err: errors.New("boom")})
	_, err := client.Scan(context.Background(), "/dev/sr0")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped command error, got %v", err)
	}
}

func TestRipRenamesExpectedOutput(t *testing.T) {
	destDir := t.TempDir()
	exec := &fakeExecutor{onRun: func(args []string) {
		path := filepath.Join(destDir, "title_t03.mkv")
		if err := os.WriteFile(path, []byte("mkv"), 0o644); err != nil {
			t.Fatalf("write rip output: %v", err)
		}
	}}
	client := newClient(t, exec)

	title := &job.DiscTitle{TitleIndex: 3}
	path, err := client.Rip(context.Background(), "/dev/sr0", title, destDir)
	if err != nil {
		t.Fatalf("Rip: %v", err)
	}
	if filepath.Base(path) != "title_03.mkv" {
		t.Fatalf("expected renamed output, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected output file: %v", err)
	}

	joined := strings.Join(exec.args, " ")
	if !strings.Contains(joined, "mkv dev:/dev/sr0 3") {
		t.Fatalf("unexpected rip args: %v", exec.args)
	}
}

func TestRipFallsBackToNewestOutput(t *testing.T) {
	destDir := t.TempDir()
	exec := &fakeExecutor{onRun: func(args []string) {
		path := filepath.Join(destDir, "B2_t00.mkv")
		if err := os.WriteFile(path, []byte("mkv"), 0o644); err != nil {
			t.Fatalf("write rip output: %v", err)
		}
	}}
	client := newClient(t, exec)

	path, err := client.Rip(context.Background(), "/dev/sr0", &job.DiscTitle{TitleIndex: 1}, destDir)
	if err != nil {
		t.Fatalf("Rip: %v", err)
	}
	if filepath.Base(path) != "title_01.mkv" {
		t.Fatalf("expected normalized name, got %s", path)
	}
}

func TestRipNoOutput(t *testing.T) {
	client := newClient(t, &fakeExecutor{})
	_, err := client.Rip(context.Background(), "/dev/sr0", &job.DiscTitle{TitleIndex: 0}, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no output file") {
		t.Fatalf("expected missing output error, got %v", err)
	}
}

func TestRipValidatesInput(t *testing.T) {
	client := newClient(t, &fakeExecutor{})
	if _, err := client.Rip(context.Background(), "", &job.DiscTitle{}, t.TempDir()); err == nil {
		t.Fatal("expected error for empty drive")
	}
	if _, err := client.Rip(context.Background(), "/dev/sr0", nil, t.TempDir()); err == nil {
		t.Fatal("expected error for nil title")
	}
	if _, err := client.Rip(context.Background(), "/dev/sr0", &job.DiscTitle{}, ""); err == nil {
		t.Fatal("expected error for empty destination")
	}
}
