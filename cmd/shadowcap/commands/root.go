package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/shadowcap/internal/capture"
	"github.com/bryanchriswhite/shadowcap/internal/config"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logLevel  string
	port      int
	configMgr *config.Manager

	rootCmd = &cobra.Command{
		Use:   "shadowcap",
		Short: "shadowcap - window screenshots with real drop shadows",
		Long: `shadowcap captures a single window together with the drop shadow the
compositor draws around it, and writes it as an image with a real alpha
channel.

The window is photographed twice, over a black and over a white backdrop,
and per-pixel transparency is recovered from the difference. Running
shadowcap with no subcommand is the same as "shadowcap capture".`,
		Example: `  # Pick a window interactively and save it to the desktop
  shadowcap

  # Capture a window by title
  shadowcap --title "Untitled - Notepad" -o notepad.png

  # Capture at an exact output size over white
  shadowcap -c Alacritty -r 1280x800 -b white`,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
		RunE:              runCapture,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/shadowcap/config.yaml)")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	addCaptureFlags(rootCmd)
}

// initConfig loads the configuration, applies flag overrides and sets up
// logging. It runs after flag parsing, so usage is silenced from here on.
func initConfig(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") && logLevel != "" {
		if err := mgr.Override("log_level", logLevel); err != nil {
			return err
		}
	}
	if flags.Changed("port") && port > 0 {
		if err := mgr.Override("server_port", port); err != nil {
			return err
		}
	}

	cfg := mgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	logger.WithComponent("config").Debug().
		Str("path", mgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	configMgr = mgr
	return nil
}

// Execute runs the root command and exits with the capture exit code
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(capture.ExitCode(err))
	}
}
