package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/boozedog/guestlog/internal/config"
	"github.com/boozedog/guestlog/internal/guestlog"
	"github.com/boozedog/guestlog/internal/metrics"
	"github.com/boozedog/guestlog/internal/web/handler"
	"github.com/boozedog/guestlog/internal/web/middleware"
	"github.com/boozedog/guestlog/internal/web/sse"
	"github.com/prometheus/client_golang/prometheus"
)

// Server is the guestlog HTTP server.
type Server struct {
	cfg    *config.Config
	broker *sse.Broker
	srv    *http.Server
}

// NewServer creates a new server. cfg must already be validated.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Routes builds the handler tree: public index and metrics, and the
// guest endpoints behind the shared-secret check. The per-IP limiter is
// mounted only when cfg.RateLimit.Rate is positive.
func Routes(ctx context.Context, cfg *config.Config, log *guestlog.Log, broker *sse.Broker, m *metrics.Metrics) http.Handler {
	h := handler.New(log, broker, m, cfg.Server.MaxBodyBytes)
	auth := middleware.Auth(cfg.Server.Auth)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Index)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	mux.Handle("GET /count", auth(http.HandlerFunc(h.Count)))
	mux.Handle("POST /append", auth(http.HandlerFunc(h.Append)))
	mux.Handle("POST /prune", auth(http.HandlerFunc(h.Prune)))
	mux.Handle("GET /events", auth(http.HandlerFunc(h.Events)))

	mw := []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Metrics(m),
		middleware.CORS(),
	}
	if cfg.RateLimit.Rate > 0 {
		rl := middleware.DefaultRateLimitConfig().WithLimits(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
		mw = append(mw, middleware.RateLimit(ctx, rl))
	}

	return middleware.Chain(mux, mw...)
}

// NewLog builds the guest log described by cfg.
func NewLog(cfg *config.Config) (*guestlog.Log, error) {
	path, err := cfg.StorePath()
	if err != nil {
		return nil, fmt.Errorf("store path: %w", err)
	}
	archiveDir, err := cfg.ArchiveDir()
	if err != nil {
		return nil, fmt.Errorf("archive dir: %w", err)
	}
	return guestlog.New(guestlog.NewStore(path),
		guestlog.WithAtomicAppend(cfg.Store.AtomicAppend),
		guestlog.WithArchiveDir(archiveDir),
	), nil
}

// ListenAndServe starts the server and blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log, err := NewLog(s.cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}

	// Touch the file so a bad path fails at start-up rather than per request.
	if _, err := log.Count(); err != nil {
		_ = ln.Close()
		return fmt.Errorf("open guest file: %w", err)
	}

	s.broker = sse.NewBroker()
	watcher, err := sse.NewWatcher(log.Path(), s.broker, sse.DefaultDebounce)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	var m *metrics.Metrics
	if s.cfg.Metrics.Enabled {
		m = metrics.New(prometheus.NewRegistry())
	}

	s.srv = &http.Server{
		Handler:     Routes(ctx, s.cfg, log, s.broker, m),
		BaseContext: func(net.Listener) context.Context { return ctx },
		ReadTimeout: 30 * time.Second,
		// WriteTimeout stays unset: /events responses are long-lived.
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown on context cancellation. In-flight file operations
	// are allowed to finish.
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", ln.Addr().String(), "file", log.Path())
	if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
