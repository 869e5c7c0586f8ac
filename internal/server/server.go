// Package server exposes named queries over HTTP.
//
// Every query declared in the configuration can be executed with a GET
// request, and subscribed to as a server-sent event stream when its
// terminal adapter publishes changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/query"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

const shutdownTimeout = 5 * time.Second

// ExecuteFunc runs q with a terminal action and returns its records.
type ExecuteFunc func(ctx context.Context, q *query.Query, action string) ([]criteria.Record, error)

// Config holds configuration for the HTTP server.
type Config struct {
	// Queries holds the registered named queries.
	Queries *query.Registry
	// Definitions are the configured queries, keyed by name.
	Definitions map[string]*config.QueryConfig
	// Execute runs a looked-up query.
	Execute ExecuteFunc
	// Addr is the listen address (optional, DefaultAddr).
	Addr string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Server serves named queries over HTTP.
type Server struct {
	queries *query.Registry
	defs    map[string]*config.QueryConfig
	execute ExecuteFunc
	addr    string
	logger  *slog.Logger
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Queries == nil {
		return nil, errors.New("query registry not specified")
	}
	if cfg.Execute == nil {
		return nil, errors.New("execute function not specified")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		queries: cfg.Queries,
		defs:    cfg.Definitions,
		execute: cfg.Execute,
		addr:    addr,
		logger:  logger,
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/queries", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{name}", s.handleRun)
		r.Get("/{name}/events", s.handleEvents)
	})
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting query server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down query server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
