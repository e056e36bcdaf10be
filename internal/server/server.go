// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pulse/internal/config"
	"pulse/internal/logger"
	"pulse/internal/server/handlers"
)

// Dependencies are the services the HTTP layer exposes
type Dependencies struct {
	Runner   handlers.Runner
	Registry handlers.Registry
	Analyzer handlers.TwoStageAnalyzer
	Watcher  handlers.Watcher
	Metrics  http.Handler
	Logger   logger.Logger

	// BaseContext parents every request context. Cancelling it ends
	// in-flight streams so Shutdown does not wait on open runs.
	BaseContext context.Context
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}

	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(deps.Logger))
	router.Use(middleware.Recoverer)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.HeaderClientID},
		ExposedHeaders:   []string{handlers.HeaderRunID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	runHandler := handlers.NewRunHandler(deps.Runner, deps.Registry, deps.Logger)
	analysisHandler := handlers.NewAnalysisHandler(deps.Analyzer, deps.Logger)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Streaming runs are bounded by the run context, not a request timeout
			r.Route("/runs", func(r chi.Router) {
				r.Post("/stream", runHandler.Stream)
				r.Delete("/", runHandler.Cancel)
			})

			r.Group(func(r chi.Router) {
				if cfg.WriteTimeout > 0 {
					r.Use(middleware.Timeout(cfg.WriteTimeout))
				}
				r.Post("/signals", analysisHandler.Signals)
				r.Post("/analysis", analysisHandler.Analyze)
			})
		})
	})

	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// WebSocket endpoint for watching a run started elsewhere
	if deps.Watcher != nil {
		router.Get("/ws/runs/{id}", handlers.RunWebSocketHandler(deps.Watcher, deps.Logger))
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		// Streams outlive any fixed write deadline
		WriteTimeout: 0,
		BaseContext: func(net.Listener) context.Context {
			return deps.BaseContext
		},
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request through the service logger
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("HTTP request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Duration("duration", time.Since(start)),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
