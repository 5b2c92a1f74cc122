package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/burnable-tech/DAIHard/internal/server/handler"
	"github.com/burnable-tech/DAIHard/internal/server/middleware"
	"github.com/burnable-tech/DAIHard/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port           int
	CORSOrigins    []string
	APIKey         string // if empty, authentication is disabled
	RequestsPerSec float64
	Burst          int
}

// Handlers aggregates the HTTP handlers the server registers. Archive is
// optional and only set when a trade store is configured.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Listing *handler.ListingHandler
	Search  *handler.SearchHandler
	Archive *handler.ArchiveHandler
}

// Server is the HTTP + WebSocket API over the live trade listing.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /api/trades", handlers.Listing.ListTrades)
	mux.HandleFunc("GET /api/trades/{id}", handlers.Listing.GetTrade)

	mux.HandleFunc("GET /api/search", handlers.Search.GetSearch)
	mux.HandleFunc("PUT /api/search/inputs/{field}", handlers.Search.SetInput)
	mux.HandleFunc("POST /api/search/terms", handlers.Search.AddTerm)
	mux.HandleFunc("DELETE /api/search/terms/{term}", handlers.Search.RemoveTerm)
	mux.HandleFunc("POST /api/search/apply", handlers.Search.Apply)
	mux.HandleFunc("POST /api/search/reset", handlers.Search.Reset)
	mux.HandleFunc("PUT /api/search/sort", handlers.Search.SetSort)

	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive/trades", handlers.Archive.ListTrades)
		mux.HandleFunc("GET /api/archive/trades/{id}", handlers.Archive.GetTrade)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Outermost last: CORS answers preflights before anything else runs.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if cfg.RequestsPerSec > 0 {
		h = middleware.RateLimit(middleware.NewClientLimiter(cfg.RequestsPerSec, cfg.Burst))(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
