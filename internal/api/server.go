package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/history"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lightnode/internal/orchestrator"
	"github.com/nerrad567/gray-logic-lightnode/internal/provisioning"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Orchestrator is the control loop as seen from HTTP handlers.
type Orchestrator interface {
	Submit(r orchestrator.Request) error
	Status() orchestrator.Status
}

// Provisioning is the credential hand-off window.
type Provisioning interface {
	Submit(name, secret string) error
	Snapshot() provisioning.Snapshot
}

// Journal is the connectivity event history.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]history.Event, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	Logger       *logging.Logger
	Orchestrator Orchestrator
	Provisioning Provisioning // optional; credential submission returns 503 without it
	Journal      Journal      // optional; event history returns 503 without it
	Metrics      http.Handler // optional; served at /metrics
	Panel        http.Handler // optional; served at /panel/
	ExternalHub  *Hub         // if set, the server uses this hub instead of creating its own
	DeviceID     string
	Version      string
}

// Server is the operator HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	logger       *logging.Logger
	orch         Orchestrator
	provisioning Provisioning
	journal      Journal
	metrics      http.Handler
	panel        http.Handler
	deviceID     string
	version      string
	server       *http.Server
	listener     net.Listener
	hub          *Hub
	externalHub  bool
	cancel       context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, orchestrator)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	s := &Server{
		cfg:          deps.Config,
		logger:       deps.Logger,
		orch:         deps.Orchestrator,
		provisioning: deps.Provisioning,
		journal:      deps.Journal,
		metrics:      deps.Metrics,
		panel:        deps.Panel,
		deviceID:     deps.DeviceID,
		version:      deps.Version,
	}

	// The orchestrator's status callback needs the hub before the server
	// exists, so main usually injects one.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the WebSocket hub. It is nil until Start unless injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns so an address conflict is
// reported to the caller; serving continues in a background goroutine
// until Close.
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String(), "auth", s.authEnabled())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
