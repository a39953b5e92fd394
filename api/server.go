package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"deskresearch/repository"

	"go.uber.org/zap"
)

const (
	AppName    = "DeskResearcher"
	AppVersion = "1.0.0"
)

// Submitter starts a background research run and returns its id.
type Submitter interface {
	Submit(ctx context.Context, query, email string) (string, error)
}

// Components reports which collaborators are configured, for /health and
// /api/status.
type Components struct {
	IndexConnected bool
	LLMConfigured  bool
	MailConfigured bool
}

// Server represents the API server
type Server struct {
	submitter  Submitter
	runs       repository.RunRepo
	components Components
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer creates the API server. A nil submitter means the research engine
// could not be initialised; research requests then get 503.
func NewServer(port string, submitter Submitter, runs repository.RunRepo, components Components, logger *zap.Logger) *Server {
	s := &Server{
		submitter:  submitter,
		runs:       runs,
		components: components,
		logger:     logger,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/status", s.statusHandler)
	mux.HandleFunc("POST /api/research", s.researchHandler)
	mux.HandleFunc("GET /api/runs/{id}", s.runHandler)

	return s.logRequests(mux)
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. In-flight runs are not waited for here.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
