// Package api provides the HTTP REST and WebSocket API of portsweep. It
// exposes scan runs, their reports and live result streams, the scheduled
// scans, and system status.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/portsweep/docs/swagger" // Import generated swagger docs
	apihandlers "github.com/anstrom/portsweep/internal/api/handlers"
	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/auth"
	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanning"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
	maxHeaderBytes        = 1 << 20
)

// Paths reachable without an API key.
var publicPaths = []string{
	"/api/v1/health",
	"/api/v1/liveness",
	"/api/v1/version",
}

// Dependencies are the services the API exposes.
type Dependencies struct {
	Runs      apihandlers.RunManager
	Scheduler apihandlers.JobScheduler
	Metrics   *metrics.PrometheusMetrics
	Build     apihandlers.BuildInfo
	Logger    *logging.Logger
	// AccessLog receives Apache combined log lines when enabled in config.
	// Defaults to stdout.
	AccessLog io.Writer
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     *config.Config
	logger     *logging.Logger
	streams    *apihandlers.WebSocketHandler

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new API server instance.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Runs == nil {
		return nil, errors.NewScanError(errors.CodeConfiguration, "api server requires a run manager")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("api")

	var keys *auth.KeySet
	if cfg.API.AuthEnabled {
		if len(cfg.API.APIKeyHashes) == 0 {
			return nil, errors.NewConfigFieldError(errors.CodeConfiguration,
				"authentication enabled without API keys", "api.api_key_hashes", nil)
		}
		keys = auth.NewKeySet(cfg.API.APIKeyHashes)
	}

	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
	}

	defaults := scanning.ScanConfig{
		Concurrency: cfg.Scanning.Concurrency,
		Timeout:     cfg.Scanning.Timeout,
		RateLimit:   cfg.Scanning.RateLimit,
	}
	s.streams = apihandlers.NewWebSocketHandler(deps.Runs, logger)

	s.setupMiddleware(deps.Metrics)
	s.setupRoutes(deps, defaults, keys)
	s.handler = s.wrap(deps.AccessLog)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port)),
		Handler:           s.handler,
		ReadTimeout:       cfg.API.ReadTimeout,
		ReadHeaderTimeout: cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       cfg.API.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	return s, nil
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("API server failed to listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Starting API server",
		"address", ln.Addr().String(),
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout,
		"auth", s.config.API.AuthEnabled)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server. Open result streams are closed
// first since hijacked connections are not tracked by Shutdown.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	s.streams.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// Addr returns the bound address once Start is listening, or the
// configured address before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// setupMiddleware installs the middleware that runs for every matched route.
func (s *Server) setupMiddleware(pm *metrics.PrometheusMetrics) {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	if pm != nil {
		s.router.Use(middleware.Metrics(pm))
	}
	s.router.Use(middleware.SecurityHeaders())
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(deps Dependencies, defaults scanning.ScanConfig, keys *auth.KeySet) {
	s.router.MethodNotAllowedHandler = http.HandlerFunc(apihandlers.MethodNotAllowed)
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(apihandlers.MethodNotAllowed)
	api.Use(middleware.ContentType())
	if keys != nil {
		api.Use(middleware.Authentication(keys, s.logger, publicPaths...))
	}
	if s.config.API.RateLimitEnabled {
		api.Use(middleware.RateLimit(s.config.API.RateLimitRequests, s.config.API.RateLimitBurst, s.logger))
	}

	var schedulerStatus apihandlers.SchedulerStatus
	if deps.Scheduler != nil {
		schedulerStatus = deps.Scheduler
	}
	health := apihandlers.NewHealthHandler(deps.Build, deps.Runs, schedulerStatus, s.logger)
	api.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	api.HandleFunc("/liveness", health.Liveness).Methods(http.MethodGet)
	api.HandleFunc("/status", health.Status).Methods(http.MethodGet)
	api.HandleFunc("/version", health.Version).Methods(http.MethodGet)

	scans := apihandlers.NewScanHandler(deps.Runs, defaults, s.logger)
	api.HandleFunc("/scans", scans.CreateScan).Methods(http.MethodPost)
	api.HandleFunc("/scans", scans.ListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", scans.GetScan).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", scans.CancelScan).Methods(http.MethodDelete)
	api.HandleFunc("/scans/{id}/report", scans.GetReport).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/stream", s.streams.StreamScan).Methods(http.MethodGet)

	if deps.Scheduler != nil {
		schedules := apihandlers.NewScheduleHandler(deps.Scheduler, s.logger)
		api.HandleFunc("/schedules", schedules.ListSchedules).Methods(http.MethodGet)
		api.HandleFunc("/schedules/{name}", schedules.GetSchedule).Methods(http.MethodGet)
		api.HandleFunc("/schedules/{name}/run", schedules.TriggerSchedule).Methods(http.MethodPost)
	}

	api.HandleFunc("/services", apihandlers.ListServices).Methods(http.MethodGet)
	api.HandleFunc("/ports", apihandlers.ParsePorts).Methods(http.MethodGet)

	if deps.Metrics != nil && s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	// Swagger documentation endpoints
	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))

	// Documentation aliases
	s.router.HandleFunc("/docs", redirectToSwagger).Methods(http.MethodGet)
	s.router.HandleFunc("/docs/", redirectToSwagger).Methods(http.MethodGet)

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
}

// wrap adds the handlers that must see every request, matched or not.
func (s *Server) wrap(accessLog io.Writer) http.Handler {
	var h http.Handler = s.router

	if s.config.API.EnableCORS {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.config.API.CORSOrigins),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-API-Key", "X-Request-ID"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.ExposedHeaders([]string{"X-Request-ID", "Location", "Retry-After"}),
		)(h)
	}

	if s.config.API.AccessLog {
		if accessLog == nil {
			accessLog = os.Stdout
		}
		h = handlers.CombinedLoggingHandler(accessLog, h)
	}
	return h
}

// index returns API information for root requests.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"service":"portsweep","version":"v1","endpoints":{`+
		`"health":"/api/v1/health","scans":"/api/v1/scans","docs":"/swagger/"}}`+"\n")
}

// redirectToSwagger redirects to the Swagger UI.
func redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}
