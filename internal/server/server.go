// Package server provides the HTTP server and routing.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/config"
	"github.com/pkoukos/stockfolio/internal/marketdata"
	"github.com/pkoukos/stockfolio/internal/modules/auth"
	"github.com/pkoukos/stockfolio/internal/modules/charts"
	"github.com/pkoukos/stockfolio/internal/modules/ledger"
	"github.com/pkoukos/stockfolio/internal/modules/portfolio"
	"github.com/pkoukos/stockfolio/internal/modules/simulation"
)

// Config holds server wiring
type Config struct {
	Log zerolog.Logger
	Cfg *config.Config

	AuthService *auth.Service

	AuthHandlers       *auth.Handlers
	LedgerHandlers     *ledger.Handlers
	PortfolioHandlers  *portfolio.Handlers
	SimulationHandlers *simulation.Handlers
	ChartsHandlers     *charts.Handlers
	MarketHandlers     *marketdata.Handlers
	SystemHandlers     *SystemHandlers
	AdminHandlers      *AdminHandlers
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	origins := []string{"*"}
	if s.cfg.Cfg.CORSOrigin != "" {
		origins = []string{s.cfg.Cfg.CORSOrigin}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.cfg.SystemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			s.cfg.AuthHandlers.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(s.cfg.AuthService.RequireAuth)
				s.cfg.AuthHandlers.RegisterProtectedRoutes(r)
			})
		})

		// Everything below needs an authenticated user
		r.Group(func(r chi.Router) {
			r.Use(s.cfg.AuthService.RequireAuth)

			s.cfg.LedgerHandlers.RegisterRoutes(r)
			s.cfg.PortfolioHandlers.RegisterRoutes(r)
			s.cfg.SimulationHandlers.RegisterRoutes(r)
			s.cfg.ChartsHandlers.RegisterRoutes(r)
			s.cfg.MarketHandlers.RegisterRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.cfg.AuthService.RequireAuth)
			r.Use(s.cfg.AuthService.RequireAdmin)

			s.cfg.AdminHandlers.RegisterRoutes(r)
			r.Get("/system", s.cfg.SystemHandlers.HandleSystemStatus)
		})
	})
}

// requestLogger logs each request with zerolog
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

// Start begins listening for requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
