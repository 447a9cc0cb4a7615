package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/bryanchriswhite/shadowcap/internal/window"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List windows that can be captured",
	Long: `List the visible top-level windows in the order the picker shows them:
the foreground window first, then the rest topmost first.

Windows whose class matches an exclusion (see "shadowcap exclude") are
left out.`,
	Example: `  # List windows in table format (default)
  shadowcap list

  # List windows in JSON format
  shadowcap list --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listFormat, "format", "table", "output format (table or json)")
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	windows, err := s.windows.ListVisibleWindows()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printWindowsTable(os.Stdout, windows)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printWindowsTable(out io.Writer, windows []window.Descriptor) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "HANDLE\tCLASS\tTITLE\tSTATE")
	fmt.Fprintln(w, "------\t-----\t-----\t-----")

	for _, d := range windows {
		var state []string
		if d.IsForeground {
			state = append(state, "foreground")
		}
		if d.IsMinimized {
			state = append(state, "minimized")
		}
		fmt.Fprintf(w, "0x%x\t%s\t%s\t%s\n", uint64(d.Handle), d.ClassName, d.Title, strings.Join(state, ","))
	}

	return nil
}
