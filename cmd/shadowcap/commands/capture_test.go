package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bryanchriswhite/shadowcap/internal/capture"
	"github.com/bryanchriswhite/shadowcap/internal/output"
	"github.com/bryanchriswhite/shadowcap/internal/window"
	"github.com/spf13/cobra"
)

func parseCaptureFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	captureFlags = captureFlagValues{}
	cmd := &cobra.Command{Use: "test"}
	addCaptureFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cmd
}

func TestApplyCaptureFlags(t *testing.T) {
	cmd := parseCaptureFlags(t, "-r", "640x480", "-m", "1,2,3,4", "-b", "white")
	opts := capture.DefaultOptions()
	if err := applyCaptureFlags(&opts, captureFlags, cmd.Flags()); err != nil {
		t.Fatalf("applyCaptureFlags() error = %v", err)
	}
	if opts.Resize == nil || *opts.Resize != (capture.Size{Width: 640, Height: 480}) {
		t.Fatalf("resize = %v", opts.Resize)
	}
	if opts.Margins != (capture.Margins{Left: 1, Top: 2, Right: 3, Bottom: 4}) {
		t.Fatalf("margins = %v", opts.Margins)
	}
	if opts.Background.Mode != capture.Opaque {
		t.Fatalf("background = %v", opts.Background)
	}
}

func TestApplyCaptureFlagsFallsBack(t *testing.T) {
	cmd := parseCaptureFlags(t, "-m", "lots", "-b", "plaid")
	opts := capture.DefaultOptions()
	if err := applyCaptureFlags(&opts, captureFlags, cmd.Flags()); err != nil {
		t.Fatalf("applyCaptureFlags() error = %v", err)
	}
	if opts != capture.DefaultOptions() {
		t.Fatalf("options = %+v, want defaults", opts)
	}
}

func TestApplyCaptureFlagsRejectsBadResize(t *testing.T) {
	cmd := parseCaptureFlags(t, "-r", "wide")
	opts := capture.DefaultOptions()
	err := applyCaptureFlags(&opts, captureFlags, cmd.Flags())
	if err == nil {
		t.Fatalf("expected resize error")
	}
	if capture.ExitCode(err) != capture.ExitError {
		t.Fatalf("exit code = %d, want usage error", capture.ExitCode(err))
	}
}

func TestResolveFormat(t *testing.T) {
	cases := []struct {
		flags      captureFlagValues
		configured string
		want       output.Format
	}{
		{captureFlagValues{}, "tiff", output.TIFF},
		{captureFlagValues{}, "nonsense", output.PNG},
		{captureFlagValues{output: "a.jpg"}, "png", output.JPEG},
		{captureFlagValues{output: "-"}, "bmp", output.BMP},
		{captureFlagValues{output: "a.jpg", format: "gif"}, "png", output.GIF},
	}
	for _, c := range cases {
		got, err := resolveFormat(c.flags, c.configured)
		if err != nil || got != c.want {
			t.Fatalf("resolveFormat(%+v, %q) = %q, %v, want %q", c.flags, c.configured, got, err, c.want)
		}
	}
	if _, err := resolveFormat(captureFlagValues{format: "webp"}, "png"); err == nil {
		t.Fatalf("expected error for unknown format flag")
	}
}

func TestResolveOutputDefaultPath(t *testing.T) {
	dir := t.TempDir()
	desc := window.Descriptor{ClassName: "Term", Title: "build: main"}

	out, err := resolveOutput("", desc, output.PNG, dir, 90)
	if err != nil {
		t.Fatalf("resolveOutput() error = %v", err)
	}
	fo, ok := out.(*output.FileOutput)
	if !ok {
		t.Fatalf("output = %T, want file", out)
	}
	if want := filepath.Join(dir, "build_ main.png"); fo.Path() != want {
		t.Fatalf("path = %q, want %q", fo.Path(), want)
	}

	out, err = resolveOutput("-", desc, output.PNG, dir, 90)
	if err != nil || out.Name() != "stdout" {
		t.Fatalf("resolveOutput(-) = %v, %v", out, err)
	}
}

func TestPrintWindowsTable(t *testing.T) {
	var buf bytes.Buffer
	err := printWindowsTable(&buf, []window.Descriptor{
		{Handle: 0x2a, ClassName: "Term", Title: "zsh", IsForeground: true},
		{Handle: 0x10, ClassName: "Editor", Title: "notes", IsMinimized: true},
	})
	if err != nil {
		t.Fatalf("printWindowsTable() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "0x2a") || !strings.Contains(lines[2], "foreground") {
		t.Fatalf("row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "minimized") {
		t.Fatalf("row = %q", lines[3])
	}
}
