// Package selector lets the user pick a capture target from a terminal list.
package selector

import (
	"errors"
	"fmt"
	"os"

	"github.com/bryanchriswhite/shadowcap/internal/window"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

var (
	// ErrNoWindows is returned when there is nothing to choose from
	ErrNoWindows = errors.New("no visible windows to choose from")
	// ErrNoTerminal is returned when stdin or stderr is not a TTY
	ErrNoTerminal = errors.New("interactive selection requires a terminal (use --class, --title or --handle)")
	// ErrCancelled is returned when the user aborts the prompt
	ErrCancelled = errors.New("selection cancelled")
)

// Options builds one option per window, labelled "Class - Title", keeping the
// enumeration order
func Options(windows []window.Descriptor) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, len(windows))
	for i, w := range windows {
		label := w.Label()
		if w.IsMinimized {
			label += " (minimized)"
		}
		opts = append(opts, huh.NewOption(label, i))
	}
	return opts
}

// Interactive reports whether a prompt can be shown
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// Choose prompts for one of windows. The prompt renders on stderr so stdout
// stays free for image data.
func Choose(windows []window.Descriptor) (window.Descriptor, error) {
	if len(windows) == 0 {
		return window.Descriptor{}, ErrNoWindows
	}
	if !Interactive() {
		return window.Descriptor{}, ErrNoTerminal
	}

	var idx int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Select a window to capture").
				Description(fmt.Sprintf("%d windows, topmost first", len(windows))).
				Options(Options(windows)...).
				Height(min(len(windows)+2, 20)).
				Value(&idx),
		),
	).WithOutput(os.Stderr)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return window.Descriptor{}, ErrCancelled
		}
		return window.Descriptor{}, fmt.Errorf("selection prompt failed: %w", err)
	}

	return windows[idx], nil
}
