// Package app hosts the courtroom HTTP/WebSocket surface: the session
// REST endpoints, the live notification socket, and the server
// lifecycle around them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/coordinator"
	"github.com/adjourn-app/courtroom/internal/courtroom/notify"
	"github.com/adjourn-app/courtroom/internal/platform/timeouts"
)

// Config defines the inputs for the courtroom transport boundary.
type Config struct {
	HTTPAddr          string
	Token             TokenConfig
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the courtroom HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
}

// NewServer builds a configured courtroom server.
func NewServer(config Config, coord *coordinator.Coordinator, hub *notify.Hub) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if coord == nil {
		return nil, errors.New("coordinator is required")
	}
	if hub == nil {
		return nil, errors.New("notification hub is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(coord, hub, config.Token),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
	}, nil
}

// Run creates and serves a courtroom server until the context ends.
func Run(ctx context.Context, config Config, coord *coordinator.Coordinator, hub *notify.Hub) error {
	server, err := NewServer(config, coord, hub)
	if err != nil {
		return fmt.Errorf("init courtroom server: %w", err)
	}
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve courtroom: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("courtroom server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("courtroom server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
