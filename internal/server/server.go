// ABOUTME: HTTP server for uploads, dashboard rendering, and data management.
// ABOUTME: Routes on gorilla/mux, serves prometheus metrics, and shuts down server and store together.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/harperreed/healthdash/internal/dashboard"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/harperreed/healthdash/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes = 32 << 20

// Options configure a Server.
type Options struct {
	Addr string
	// Subject is used for uploads that do not name one.
	Subject        string
	MaxUploadBytes int64
	Metrics        *telemetry.Manager
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server serves the HTTP surface over one repository.
type Server struct {
	repo       storage.Repository
	dash       *dashboard.Service
	opts       Options
	router     *mux.Router
	httpServer *http.Server
}

// New builds a Server and its routes.
func New(repo storage.Repository, dash *dashboard.Service, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		repo: repo,
		dash: dash,
		opts: opts,
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/dashboard", s.handleDashboardPage).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/observations", s.handleDeleteObservations).Methods(http.MethodDelete)
	api.HandleFunc("/observations/{metric}", s.handleListObservations).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleListMetrics).Methods(http.MethodGet)
	api.HandleFunc("/manual", s.handleListManual).Methods(http.MethodGet)
	api.HandleFunc("/manual", s.handleAddManual).Methods(http.MethodPost)
	api.HandleFunc("/manual/last", s.handleRemoveLastManual).Methods(http.MethodDelete)
	api.HandleFunc("/imports", s.handleListImports).Methods(http.MethodGet)

	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.Use(PanicRecovery(s.opts.Metrics))
	r.Use(RequestMetrics(s.opts.Metrics))
	r.Use(LogRequest())

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof(" > server listening on: [%s]", s.opts.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return multierr.Append(err, s.repo.Close())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = multierr.Append(err, serveErr)
	}
	log.Warnln("server shut down")
	return err
}

// Shutdown stops the HTTP server and closes the repository, reporting both failures.
func (s *Server) Shutdown(ctx context.Context) error {
	return multierr.Combine(
		s.httpServer.Shutdown(ctx),
		s.repo.Close(),
	)
}
