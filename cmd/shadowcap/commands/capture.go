package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/shadowcap/internal/capture"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/bryanchriswhite/shadowcap/internal/output"
	"github.com/bryanchriswhite/shadowcap/internal/selector"
	"github.com/bryanchriswhite/shadowcap/internal/window"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a window with its shadow",
	Long: `Capture one window, including the compositor's drop shadow, to an image.

The target is chosen by --class, --title or --handle. With none of them, or
with --interactive, a list of visible windows is shown to pick from.

Backgrounds:
  transparent      black and white passes, alpha recovered (default)
  black, white     single pass over a solid colour, fully opaque
  #RRGGBB          single pass over that colour, fully opaque
  keyed[:#RRGGBB]  single pass over a key colour, alpha estimated`,
	Example: `  # Capture by class and title
  shadowcap capture -c Notepad -t "todo.txt - Notepad"

  # Resize so the image is exactly 1280x800 including margins
  shadowcap capture -t "Terminal" -r 1280x800 -m 40

  # Asymmetric margins, JPEG to stdout
  shadowcap capture -t "Terminal" -m 20,10,20,60 -f jpeg -o - > shot.jpg`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

type captureFlagValues struct {
	class       string
	title       string
	handle      uint64
	output      string
	interactive bool
	resize      string
	margins     string
	background  string
	format      string
}

var captureFlags captureFlagValues

func init() {
	rootCmd.AddCommand(captureCmd)
	addCaptureFlags(captureCmd)
}

// addCaptureFlags registers the capture flags. The root command carries them
// too so that capture is the default action.
func addCaptureFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&captureFlags.class, "class", "c", "", "window class name")
	fs.StringVarP(&captureFlags.title, "title", "t", "", "exact window title")
	fs.Uint64Var(&captureFlags.handle, "handle", 0, "native window handle (HWND or X11 window id)")
	fs.StringVarP(&captureFlags.output, "output", "o", "", "output file, or - for stdout (default: <title>.png on the desktop)")
	fs.BoolVarP(&captureFlags.interactive, "interactive", "i", false, "pick the window from a list")
	fs.StringVarP(&captureFlags.resize, "resize", "r", "", "resize so the output is exactly WIDTHxHEIGHT")
	fs.StringVarP(&captureFlags.margins, "margins", "m", "", "shadow margins: N or LEFT,TOP,RIGHT,BOTTOM (default from config)")
	fs.StringVarP(&captureFlags.background, "background", "b", "", "transparent, black, white, #RRGGBB or keyed[:#RRGGBB]")
	fs.StringVarP(&captureFlags.format, "format", "f", "", "image format: png, jpeg, bmp, gif, tiff (default from extension or config)")
	fs.SortFlags = false
}

func runCapture(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cli")
	cfg := configMgr.Get()
	flags := captureFlags

	opts := capture.OptionsFromConfig(cfg.Capture)
	if err := applyCaptureFlags(&opts, flags, cmd.Flags()); err != nil {
		return err
	}

	format, err := resolveFormat(flags, cfg.Capture.Format)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	sel := window.Selector{Handle: window.Handle(flags.handle), Class: flags.class, Title: flags.title}
	if flags.interactive || sel.Empty() {
		windows, err := s.windows.ListVisibleWindows()
		if err != nil {
			return err
		}
		chosen, err := selector.Choose(windows)
		if err != nil {
			return err
		}
		sel = window.Selector{Handle: chosen.Handle}
	}

	desc, err := s.windows.Find(sel)
	if err != nil {
		return fmt.Errorf("%w: %s", capture.ErrWindowNotFound, sel)
	}

	out, err := resolveOutput(flags.output, desc, format, cfg.Capture.OutputDir, cfg.Capture.JPEGQuality)
	if err != nil {
		return err
	}

	orch, err := s.orchestrator()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("window", desc.Label()).
		Str("background", opts.Background.String()).
		Str("margins", opts.Margins.String()).
		Msg("Capturing")

	img, err := orch.Capture(ctx, window.Selector{Handle: desc.Handle}, opts)
	if err != nil {
		return err
	}

	if err := out.Write(img); err != nil {
		return err
	}
	if fo, ok := out.(*output.FileOutput); ok {
		fmt.Fprintf(os.Stderr, "Saved %dx%d capture to %s\n", img.Rect.Dx(), img.Rect.Dy(), fo.Path())
	}
	return nil
}

// applyCaptureFlags overrides the configured defaults. A bad resize is a
// usage error; bad margins or background fall back to the defaults.
func applyCaptureFlags(opts *capture.Options, f captureFlagValues, fs *pflag.FlagSet) error {
	log := logger.WithComponent("cli")

	if fs.Changed("resize") {
		size, err := capture.ParseSize(f.resize)
		if err != nil {
			return fmt.Errorf("invalid --resize: %w", err)
		}
		opts.Resize = &size
	}

	if fs.Changed("margins") {
		m, err := capture.ParseMargins(f.margins)
		if err != nil {
			log.Warn().Err(err).Str("default", opts.Margins.String()).Msg("Invalid --margins, using default")
		} else {
			opts.Margins = m
		}
	}

	if fs.Changed("background") {
		bg, err := capture.ParseBackground(f.background)
		if err != nil {
			log.Warn().Err(err).Str("default", opts.Background.String()).Msg("Invalid --background, using default")
		} else {
			opts.Background = bg
		}
	}
	return nil
}

func resolveFormat(f captureFlagValues, configured string) (output.Format, error) {
	switch {
	case f.format != "":
		return output.ParseFormat(f.format)
	case f.output != "" && f.output != "-":
		return output.FormatFromPath(f.output), nil
	default:
		format, err := output.ParseFormat(configured)
		if err != nil {
			return output.PNG, nil
		}
		return format, nil
	}
}

func resolveOutput(path string, desc window.Descriptor, format output.Format, dir string, quality int) (output.Output, error) {
	cfg := output.Config{Format: format, Quality: quality}

	if path == "-" {
		return output.NewWriterOutput(os.Stdout, "stdout", cfg), nil
	}

	if path == "" {
		name := desc.Title
		if name == "" {
			name = desc.ClassName
		}
		path = output.DefaultPath(dir, name, format)
	}

	free, err := output.AvailablePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to check output path: %w", err)
	}
	if free != path {
		logger.WithComponent("cli").Info().Str("path", free).Msg("Output exists, writing to a new name")
	}
	return output.NewFileOutput(free, cfg), nil
}
