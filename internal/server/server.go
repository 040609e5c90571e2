package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"platformd/internal/operation"
	"platformd/internal/platform"
	"platformd/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Minute
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware. Provisioning endpoints run
	// terraform and kubectl synchronously, so this is generous.
	RequestTimeout = 10 * time.Minute

	// Rate limiting - requests per minute
	GlobalRateLimit       = 120
	ProvisioningRateLimit = 10
)

// Infrastructure matches the provisioner used for background
// infrastructure operations. It is the same contract the orchestrator
// uses for its infrastructure sub-step.
type Infrastructure = platform.Infrastructure

// Server represents the HTTP server
type Server struct {
	Store          *store.Store
	Orchestrator   *platform.Orchestrator
	Tracker        *operation.Tracker
	Infrastructure Infrastructure
	Logger         *slog.Logger
	TestMode       bool

	validate *validator.Validate
	opsWg    sync.WaitGroup // Tracks in-flight background operations
}

// NewServer creates a new server instance
func NewServer(st *store.Store, orch *platform.Orchestrator, tracker *operation.Tracker, infra Infrastructure, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Store:          st,
		Orchestrator:   orch,
		Tracker:        tracker,
		Infrastructure: infra,
		Logger:         logger,
		TestMode:       testMode,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	// Rate limiting middleware (only if not in test mode)
	if !s.TestMode {
		r.Use(NewRateLimitMiddleware(GlobalRateLimit, s.Logger))
	}

	r.Get("/health", s.HandleHealth)
	r.Get("/health/live", s.HandleLiveness)
	r.Get("/health/ready", s.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/services", func(r chi.Router) {
			r.Post("/", s.HandleCreateService)
			r.Get("/", s.HandleListServices)
			r.Get("/templates/list", s.HandleListTemplates)
			r.Post("/from-template/{templateName}", s.HandleCreateServiceFromTemplate)
			r.Get("/{serviceID}", s.HandleGetService)
			r.Put("/{serviceID}", s.HandleUpdateService)
			r.Delete("/{serviceID}", s.HandleDeleteService)
			if !s.TestMode {
				r.With(NewProvisioningRateLimitMiddleware(ProvisioningRateLimit, s.Logger)).
					Post("/{serviceID}/provision", s.HandleProvisionService)
			} else {
				r.Post("/{serviceID}/provision", s.HandleProvisionService)
			}
		})

		r.Route("/deployments", func(r chi.Router) {
			r.Post("/", s.HandleCreateDeployment)
			r.Get("/", s.HandleListDeployments)
			r.Get("/{deploymentID}", s.HandleGetDeployment)
			r.Put("/{deploymentID}", s.HandleUpdateDeployment)
			r.Delete("/{deploymentID}", s.HandleDeleteDeployment)
			r.Post("/{deploymentID}/trigger", s.HandleTriggerDeployment)
		})

		r.Route("/infrastructure", func(r chi.Router) {
			r.Post("/provision", s.HandleProvisionInfrastructure)
			r.Post("/destroy", s.HandleDestroyInfrastructure)
			r.Get("/operations", s.HandleListOperations)
			r.Get("/operations/{operationID}", s.HandleGetOperation)
			r.Delete("/operations/cleanup", s.HandleCleanupOperations)
		})
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	s.Logger.Info("Starting server", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	return server.ListenAndServe()
}

// WaitForOperations waits for all in-flight background operations to
// complete. This is primarily useful for testing.
func (s *Server) WaitForOperations() {
	s.opsWg.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Wait for in-flight background operations
	s.opsWg.Wait()

	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]string{"error": message})
}
