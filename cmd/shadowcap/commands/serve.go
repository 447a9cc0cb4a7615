package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/shadowcap/internal/api"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture HTTP server",
	Long: `Start an HTTP server that lists windows and captures them on request.

Endpoints:
  GET  /api/health          liveness
  GET  /api/windows         visible windows, picker order
  GET  /api/config          effective configuration
  POST /api/capture         capture a window, responds with the image
  GET  /api/capture/events  websocket of capture stage events`,
	Example: `  # Start server on default port (8080)
  shadowcap serve

  # Start server on custom port
  shadowcap serve --port 9090

  # Capture over HTTP
  curl -o shot.png -d '{"title":"Terminal","margins":"40"}' localhost:8080/api/capture`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")
	cfg := configMgr.Get()

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	orch, err := s.orchestrator()
	if err != nil {
		return err
	}

	server := api.NewServer(s.windows, orch, configMgr)
	orch.SetObserver(server.Observe)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.ServerPort)
	}()

	log.Info().
		Int("port", cfg.ServerPort).
		Str("backend", s.backend.Name()).
		Str("sampler", s.sampler.Name()).
		Msg("shadowcap is running, press Ctrl+C to stop")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigChan:
	}

	log.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
