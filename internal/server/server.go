package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stadtaev/beatstatus/internal/handler/health"
)

var ErrServerStopped = errors.New("server stopped")

// BindError reports that the listening endpoint could not be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
	// Checks are reported by /healthz next to the hub's own check.
	Checks map[string]health.Checker
}

func (o *Options) setDefaults() {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 10 * time.Second
	}
}

type Server struct {
	srv    *http.Server
	hub    *Hub
	logger *slog.Logger

	mu      sync.Mutex
	ln      net.Listener
	stopped bool
	errc    chan error
}

func New(addr string, logger *slog.Logger, hub *Hub, opts Options) *Server {
	opts.setDefaults()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, logger, hub, opts)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		hub:    hub,
		logger: logger,
		errc:   make(chan error, 1),
	}
}

// Handler returns the routed handler without binding a listener.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start binds the listener and serves in the background. A bind failure
// is returned as *BindError. Calling Start on a running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrServerStopped
	}
	if s.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return &BindError{Addr: s.srv.Addr, Err: err}
	}
	s.ln = ln
	s.logger.Info("status server listening", "addr", ln.Addr().String())

	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.errc <- err
	}()
	return nil
}

// Err delivers the serve loop's result once it exits. Nil means a clean
// Stop.
func (s *Server) Err() <-chan error { return s.errc }

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}

// Stop closes the listener, disconnects every subscriber and waits for
// their handlers to finish. Only the first call does any work.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.ln != nil
	s.mu.Unlock()

	var errs []error
	if started {
		if err := s.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down http: %w", err))
		}
	}

	s.hub.Close()
	if err := s.hub.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for subscribers: %w", err))
	}

	s.logger.Info("status server stopped")
	return errors.Join(errs...)
}
