package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"adc-acquisition/internal/domain"
	"adc-acquisition/internal/infra"
)

// Server exposes the HTTP transport for the acquisition service.
type Server struct {
	router chi.Router
}

// Option customises the server.
type Option func(*handler)

// WithDefaultTimeout bounds sample requests that do not carry a timeout parameter.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(h *handler) {
		h.defaultTimeout = timeout
	}
}

// NewServer constructs a chi based HTTP server that forwards requests to the application service.
func NewServer(service domain.AcquisitionService, opts ...Option) *Server {
	router := chi.NewRouter()
	router.Use(infra.HTTPMiddleware)

	handler := &handler{service: service}
	for _, opt := range opts {
		opt(handler)
	}
	registerRoutes(router, handler)

	return &Server{router: router}
}

// Router returns the configured chi router for reuse in tests or external HTTP servers.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP allows Server to satisfy the http.Handler interface directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
