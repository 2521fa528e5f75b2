// Package api provides the operational HTTP surface of Avotech.
//
// It exposes health and Prometheus endpoints, read access to the audit log
// (receipts, inbound responses, dispatched orders), a manual send endpoint for
// operators and, when the Twilio transport is active, the inbound webhook.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paulosouza-ec/Avotech/internal/messaging"
	"github.com/paulosouza-ec/Avotech/internal/store"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds how long in-flight requests may take to finish.
	DefaultShutdownTimeout = 10 * time.Second
	// TwilioWebhookPath is where Twilio posts inbound WhatsApp messages.
	TwilioWebhookPath = "/webhook/twilio"
)

// SessionCounter reports how many conversations are held in memory.
type SessionCounter interface {
	Len() int
}

// Opts holds optional dependencies for the Server.
type Opts struct {
	Gatherer prometheus.Gatherer
	Sessions SessionCounter
}

// Option configures a Server.
type Option func(*Opts)

// WithGatherer exposes the given registry at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *Opts) {
		o.Gatherer = g
	}
}

// WithSessionCounter adds the active session count to /health.
func WithSessionCounter(c SessionCounter) Option {
	return func(o *Opts) {
		o.Sessions = c
	}
}

// Server holds the dependencies shared by the HTTP handlers.
type Server struct {
	msgService messaging.Service
	st         store.Store
	gatherer   prometheus.Gatherer
	sessions   SessionCounter
	router     chi.Router
}

// NewServer builds a Server and its routes.
func NewServer(msgService messaging.Service, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		msgService: msgService,
		st:         st,
		gatherer:   cfg.Gatherer,
		sessions:   cfg.Sessions,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", s.healthHandler)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/send", s.sendHandler)
	r.Get("/receipts", s.receiptsHandler)
	r.Get("/responses", s.responsesHandler)
	r.Get("/orders", s.ordersHandler)

	if tw, ok := s.msgService.(*messaging.TwilioService); ok {
		r.Post(TwilioWebhookPath, tw.TwilioWebhookHandler)
		slog.Info("Server.routes: Twilio webhook mounted", "path", TwilioWebhookPath)
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}
