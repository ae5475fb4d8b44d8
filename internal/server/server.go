// Package server exposes the HTTP API: document upload and status,
// question answering, and graph management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicozefrench/diveteacher/internal/config"
	"github.com/nicozefrench/diveteacher/internal/export"
	"github.com/nicozefrench/diveteacher/internal/graphstore"
	"github.com/nicozefrench/diveteacher/internal/queue"
	"github.com/nicozefrench/diveteacher/internal/rag"
	"github.com/nicozefrench/diveteacher/internal/ratelimit"
	"github.com/nicozefrench/diveteacher/internal/status"
)

// Graph is the graph management surface the handlers need.
type Graph interface {
	Stats(ctx context.Context) (*graphstore.Stats, error)
	DetailedStats(ctx context.Context) (*graphstore.DetailedStats, error)
	DocumentSubgraph(ctx context.Context, uploadID string) (*graphstore.Subgraph, error)
	Query(ctx context.Context, cypher string) (*graphstore.QueryResult, error)
	BuildCommunities(ctx context.Context) (*graphstore.CommunityResult, error)
	Clear(ctx context.Context) error
	Health(ctx context.Context) *graphstore.HealthReport
}

// Answerer is the question answering surface.
type Answerer interface {
	Query(ctx context.Context, question string, params rag.Params) (*rag.Answer, error)
	Stream(ctx context.Context, question string, params rag.Params) (*rag.StreamResult, error)
	Healthy(ctx context.Context) error
}

// Enqueuer is the document queue surface.
type Enqueuer interface {
	Enqueue(uploadID, path, filename, groupID string) int
	Status() queue.Status
}

// Exporter writes and serves graph export files.
type Exporter interface {
	Write(ctx context.Context, format string) (*export.Info, error)
	Backup(ctx context.Context) (*export.Info, error)
	Open(name string) (*os.File, error)
}

// ComponentHealth reports reachability of an external dependency.
type ComponentHealth func(ctx context.Context) error

// Server is the HTTP API component.
type Server struct {
	cfg     config.ServerConfig
	uploads config.UploadsConfig

	registry *status.Registry
	queue    Enqueuer
	graph    Graph
	answerer Answerer
	exporter Exporter
	limiter  *ratelimit.TokenWindow

	converterHealth ComponentHealth
	rerankerHealth  func(ctx context.Context) bool

	logger *slog.Logger
	http   *http.Server
}

// Option configures the Server.
type Option func(*Server)

// WithConfig sets the server and upload configuration.
func WithConfig(cfg config.ServerConfig, uploads config.UploadsConfig) Option {
	return func(s *Server) {
		s.cfg = cfg
		s.uploads = uploads
	}
}

// WithRegistry sets the processing status registry.
func WithRegistry(r *status.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// WithQueue sets the document queue.
func WithQueue(q Enqueuer) Option {
	return func(s *Server) {
		s.queue = q
	}
}

// WithGraph sets the graph store.
func WithGraph(g Graph) Option {
	return func(s *Server) {
		s.graph = g
	}
}

// WithAnswerer sets the question answering engine.
func WithAnswerer(a Answerer) Option {
	return func(s *Server) {
		s.answerer = a
	}
}

// WithExporter sets the export writer.
func WithExporter(e Exporter) Option {
	return func(s *Server) {
		s.exporter = e
	}
}

// WithLimiter exposes rate limiter stats in queue responses.
func WithLimiter(l *ratelimit.TokenWindow) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithConverterHealth sets the conversion backend health check.
func WithConverterHealth(h ComponentHealth) Option {
	return func(s *Server) {
		s.converterHealth = h
	}
}

// WithRerankerHealth sets the reranker health check.
func WithRerankerHealth(h func(ctx context.Context) bool) Option {
	return func(s *Server) {
		s.rerankerHealth = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the Server.
func New(opts ...Option) *Server {
	s := &Server{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Name returns the component name.
func (s *Server) Name() string {
	return "http-server"
}

// routes builds the chi router with all API endpoints.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)

		r.Get("/status", s.handleStatusAll)
		r.Get("/status/{uploadID}", s.handleStatusGet)
		r.Delete("/status/{uploadID}", s.handleStatusDelete)
		r.Get("/logs/{uploadID}", s.handleLogs)
		r.Get("/queue", s.handleQueue)

		r.Post("/query", s.handleQuery)
		r.Post("/query/stream", s.handleQueryStream)
		r.Get("/query/health", s.handleQueryHealth)

		r.Get("/graph/stats", s.handleGraphStats)
		r.Get("/graph/document/{uploadID}", s.handleGraphDocument)
		r.Post("/graph/build-communities", s.handleBuildCommunities)

		r.Get("/graphdb/stats", s.handleGraphDBStats)
		r.Post("/graphdb/query", s.handleGraphDBQuery)
		r.Post("/graphdb/export", s.handleGraphDBExport)
		r.Get("/graphdb/export/{file}", s.handleGraphDBDownload)
		r.Post("/graphdb/clear", s.handleGraphDBClear)
		r.Get("/graphdb/health", s.handleGraphDBHealth)

		r.Get("/health", s.handleHealth)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start begins serving. Non-blocking; listen errors other than a clean
// shutdown are logged.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("http server listening", "addr", s.http.Addr)

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// corsMiddleware applies the configured allowed origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.CORSOrigins))
	allowAll := false
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond))
	})
}
