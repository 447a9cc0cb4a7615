package commands

import (
	"fmt"

	"github.com/bryanchriswhite/shadowcap/internal/backdrop"
	"github.com/bryanchriswhite/shadowcap/internal/capture"
	"github.com/bryanchriswhite/shadowcap/internal/config"
	"github.com/bryanchriswhite/shadowcap/internal/window"
)

// session holds the platform connections a command needs
type session struct {
	cfg     *config.Config
	backend window.Backend
	windows *window.Manager
	sampler *capture.Router
}

func openSession() (*session, error) {
	cfg := configMgr.Get()

	backend, err := window.NewBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to open window backend: %w", err)
	}

	return &session{
		cfg:     cfg,
		backend: backend,
		windows: window.NewManager(backend, cfg.Enumeration.ExcludeClasses),
	}, nil
}

// orchestrator wires the sampler and backdrop factory for captures
func (s *session) orchestrator() (*capture.Orchestrator, error) {
	router, err := capture.NewRouter(s.cfg.Capture.Sampler)
	if err != nil {
		return nil, err
	}
	if err := router.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrCaptureFailed, err)
	}
	s.sampler = router

	factory, err := backdrop.NewFactory()
	if err != nil {
		return nil, err
	}

	orch := capture.NewOrchestrator(s.windows, factory, router, capture.TimingFromConfig(s.cfg.Timing))
	orch.SetParkCursor(s.cfg.Capture.ParkCursor)
	return orch, nil
}

func (s *session) Close() {
	if s.sampler != nil {
		s.sampler.Close()
	}
	s.backend.Close()
}
