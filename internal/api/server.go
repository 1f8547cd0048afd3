package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynet"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dynalite/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BridgeStatus is the part of the bridge the API reports on.
// *dynet.Bridge satisfies it.
type BridgeStatus interface {
	Health() dynet.HealthMessage
	PendingRequests() []dynet.PendingRequest
	PublishDiscovery()
}

// MapDocument is the map store as seen by the API. *dynet.MapStore
// satisfies it.
type MapDocument interface {
	Map() *dynet.Map
	Raw() []byte
	Replace(data []byte) error
	Reload() error
}

// ConnectionStatus reports broker connectivity for metrics.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Bridge  BridgeStatus
	Maps    MapDocument
	MQTT    ConnectionStatus // optional
	Hub     *Hub             // If set, the server uses this hub instead of creating its own
	Version string
}

// Server is the admin HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	bridge      BridgeStatus
	maps        MapDocument
	mqtt        ConnectionStatus
	version     string
	startTime   time.Time
	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, bridge, map store)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.Maps == nil {
		return nil, fmt.Errorf("map store is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		maps:      deps.Maps,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The bridge emits into the hub from the moment it starts, so the
	// process usually creates the hub first and injects it here.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.Logger)
	}

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns so a port in use is reported
// to the caller; requests are then served in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

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
		s.server = nil
		return fmt.Errorf("listening on %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
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
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
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
