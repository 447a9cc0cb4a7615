package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var excludeCmd = &cobra.Command{
	Use:   "exclude",
	Short: "Manage excluded window classes",
	Long: `Manage the window classes hidden from the list and picker.

A window is excluded when its class name contains any entry as a substring.
Overlay helpers such as Grammarly's are excluded by default.`,
}

var excludeAddCmd = &cobra.Command{
	Use:   "add CLASS",
	Short: "Exclude windows whose class contains CLASS",
	Example: `  # Hide a screen-recorder overlay
  shadowcap exclude add obs-overlay`,
	Args: cobra.ExactArgs(1),
	RunE: runExcludeAdd,
}

var excludeRemoveCmd = &cobra.Command{
	Use:     "remove CLASS",
	Aliases: []string{"rm"},
	Short:   "Stop excluding CLASS",
	Args:    cobra.ExactArgs(1),
	RunE:    runExcludeRemove,
}

var excludeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List excluded classes",
	Args:  cobra.NoArgs,
	RunE:  runExcludeList,
}

func init() {
	rootCmd.AddCommand(excludeCmd)
	excludeCmd.AddCommand(excludeAddCmd)
	excludeCmd.AddCommand(excludeRemoveCmd)
	excludeCmd.AddCommand(excludeListCmd)
}

func runExcludeAdd(cmd *cobra.Command, args []string) error {
	if err := configMgr.AddExcludedClass(args[0]); err != nil {
		return fmt.Errorf("failed to add exclusion: %w", err)
	}
	fmt.Printf("Excluding window classes containing %q\n", args[0])
	return nil
}

func runExcludeRemove(cmd *cobra.Command, args []string) error {
	if err := configMgr.RemoveExcludedClass(args[0]); err != nil {
		return fmt.Errorf("failed to remove exclusion: %w", err)
	}
	fmt.Printf("No longer excluding %q\n", args[0])
	return nil
}

func runExcludeList(cmd *cobra.Command, args []string) error {
	classes := configMgr.Get().Enumeration.ExcludeClasses
	if len(classes) == 0 {
		fmt.Println("No excluded classes")
		return nil
	}
	for _, c := range classes {
		fmt.Println(c)
	}
	return nil
}
