// Package api serves the read-only status API: the latest flight list, the
// collector's statistics, a websocket feed and a few admin actions.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/flightwall/internal/auth"
	"github.com/unklstewy/flightwall/internal/collector"
	"github.com/unklstewy/flightwall/internal/handoff"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/logger"
	"github.com/unklstewy/flightwall/pkg/weather"
)

// Collector is the part of *collector.Collector the API uses.
type Collector interface {
	Stats() collector.Stats
	Trigger() bool
}

// WeatherSource returns the current weather. *weather.Client implements it.
type WeatherSource interface {
	Current(ctx context.Context) (weather.Reading, error)
}

// NameReloader refreshes the airline and aircraft name tables from the
// reference store and reports how many entries were merged.
type NameReloader interface {
	ReloadNames(ctx context.Context) (int, error)
}

// StoreHealth reports whether the reference store answers.
type StoreHealth interface {
	StoreHealthy(ctx context.Context) bool
}

// Options wires the server to the running producer. Weather and Names are
// optional; their endpoints answer 404 when nil. Store adds the reference
// store to /api/health.
type Options struct {
	Flights   *handoff.Latest[flightaware.FlightMetadata]
	Collector Collector
	Auth      *auth.Service
	Weather   WeatherSource
	Names     NameReloader
	Store     StoreHealth

	AllowedOrigins []string

	// PushInterval is how often websocket clients are checked for a new
	// generation (default: 1 second)
	PushInterval time.Duration

	// ReadWait bounds each handoff read (default: handoff.DefaultReadWait)
	ReadWait time.Duration
}

// Server holds the HTTP router and its dependencies
type Server struct {
	router  *chi.Mux
	opts    Options
	flights *handoff.Reader[flightaware.FlightMetadata]
	logger  *logger.Logger
}

// New creates a server. log may be nil.
func New(opts Options, log *logger.Logger) *Server {
	if opts.PushInterval <= 0 {
		opts.PushInterval = time.Second
	}
	if opts.ReadWait <= 0 {
		opts.ReadWait = handoff.DefaultReadWait
	}
	if opts.Auth == nil {
		opts.Auth = auth.NewService(auth.Config{})
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router:  chi.NewRouter(),
		opts:    opts,
		flights: opts.Flights.NewReader(opts.ReadWait),
		logger:  logger.OrNop(log).Named("api"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))
			r.Get("/flights", s.handleGetFlights)
			r.Get("/stats", s.handleGetStats)
			r.Get("/weather", s.handleGetWeather)
			r.Post("/login", s.handleLogin)
		})

		// Admin routes
		r.With(s.requireRole(auth.CanTriggerRefresh)).Post("/refresh", s.handleRefresh)
		r.With(s.requireRole(auth.IsAdmin)).Post("/names/reload", s.handleReloadNames)
	})
}

// requestLogger logs every request through zap once it has been served.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", logger.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
