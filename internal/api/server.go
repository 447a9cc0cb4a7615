package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bryanchriswhite/shadowcap/internal/capture"
	"github.com/bryanchriswhite/shadowcap/internal/config"
	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/bryanchriswhite/shadowcap/internal/output"
	"github.com/bryanchriswhite/shadowcap/internal/window"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// Capturer performs one capture
type Capturer interface {
	Capture(ctx context.Context, sel window.Selector, opts capture.Options) (*image.NRGBA, error)
}

// WindowLister enumerates capture targets
type WindowLister interface {
	ListVisibleWindows() ([]window.Descriptor, error)
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	windows   WindowLister
	capturer  Capturer
	configMgr *config.Manager
	upgrader  websocket.Upgrader
	events    *Hub
	http      *http.Server

	// the desktop is shared state, so captures run one at a time
	captureMu sync.Mutex
}

// NewServer creates a new API server. Pass Observe to the orchestrator so
// stage events reach websocket clients.
func NewServer(windows WindowLister, capturer Capturer, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		windows:   windows,
		capturer:  capturer,
		configMgr: configMgr,
		events:    NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local tooling
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/windows", s.handleListWindows).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/capture", s.handleCapture).Methods("POST")
	api.HandleFunc("/capture/events", s.handleCaptureEvents)
}

// Observe publishes a capture stage event to subscribers
func (s *Server) Observe(e capture.Event) {
	s.events.Publish(e)
}

// Handler returns the root handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithComponent("api").Info().Str("addr", addr).Msg("Starting server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes event streams
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := s.windows.ListVisibleWindows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

// CaptureRequest is the body of POST /api/capture. Empty fields take the
// configured defaults.
type CaptureRequest struct {
	Handle     uint64 `json:"handle,omitempty"`
	Class      string `json:"class,omitempty"`
	Title      string `json:"title,omitempty"`
	Margins    string `json:"margins,omitempty"`
	Resize     string `json:"resize,omitempty"`
	Background string `json:"background,omitempty"`
	Format     string `json:"format,omitempty"`
	Quality    int    `json:"quality,omitempty"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sel := window.Selector{Handle: window.Handle(req.Handle), Class: req.Class, Title: req.Title}
	if sel.Empty() {
		writeError(w, http.StatusBadRequest, errors.New("one of handle, class or title is required"))
		return
	}

	cfg := s.configMgr.Get()
	opts, format, quality, err := requestOptions(req, cfg.Capture)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.captureMu.Lock()
	img, err := s.capturer.Capture(r.Context(), sel, opts)
	s.captureMu.Unlock()
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Str("selector", sel.String()).Msg("Capture failed")
		writeCaptureError(w, err)
		return
	}

	var buf bytes.Buffer
	out := output.NewWriterOutput(&buf, "http", output.Config{Format: format, Quality: quality})
	if err := out.Write(img); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Capture-Width", strconv.Itoa(img.Rect.Dx()))
	w.Header().Set("X-Capture-Height", strconv.Itoa(img.Rect.Dy()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// requestOptions merges a capture request over the configured defaults.
// Unlike the CLI, the API rejects invalid values instead of warning.
func requestOptions(req CaptureRequest, c config.CaptureConfig) (capture.Options, output.Format, int, error) {
	opts := capture.OptionsFromConfig(c)

	if req.Margins != "" {
		m, err := capture.ParseMargins(req.Margins)
		if err != nil {
			return opts, "", 0, err
		}
		opts.Margins = m
	}
	if req.Resize != "" {
		size, err := capture.ParseSize(req.Resize)
		if err != nil {
			return opts, "", 0, err
		}
		opts.Resize = &size
	}
	if req.Background != "" {
		bg, err := capture.ParseBackground(req.Background)
		if err != nil {
			return opts, "", 0, err
		}
		opts.Background = bg
	}

	formatName := req.Format
	if formatName == "" {
		formatName = c.Format
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return opts, "", 0, err
	}

	quality := req.Quality
	if quality == 0 {
		quality = c.JPEGQuality
	}
	if quality < 0 || quality > 100 {
		return opts, "", 0, fmt.Errorf("invalid quality %d (use 1-100)", quality)
	}

	return opts, format, quality, nil
}

func (s *Server) handleCaptureEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	events := s.events.Subscribe()
	defer s.events.Unsubscribe(events)

	// drain reads so close frames from the client are noticed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

// captureStatus maps capture failures to HTTP status codes
func captureStatus(err error) int {
	switch capture.ExitCode(err) {
	case capture.ExitWindowNotFound:
		return http.StatusNotFound
	case capture.ExitWindowNotVisible:
		return http.StatusConflict
	case capture.ExitInvalidDimensions:
		return http.StatusBadRequest
	case capture.ExitBackgroundSurfaceTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeCaptureError(w http.ResponseWriter, err error) {
	writeJSON(w, captureStatus(err), map[string]interface{}{
		"error": err.Error(),
		"code":  capture.ExitCode(err),
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
