package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server handles HTTP requests for the assistant
type Server struct {
	service   *Service
	basicAuth BasicAuth
	router    chi.Router
	http      *http.Server
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Enabled reports whether credentials were configured
func (b BasicAuth) Enabled() bool {
	return b.Username != "" || b.Password != ""
}

// NewServer creates a new Server with a fresh router
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithRouter(service, basicAuth, chi.NewRouter())
}

// NewServerWithRouter creates a new Server on the given router
func NewServerWithRouter(service *Service, basicAuth BasicAuth, router chi.Router) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		router:    router,
	}
	s.http = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         3600,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuth.Enabled() {
			r.Use(middleware.BasicAuth("Card Assistant", map[string]string{
				s.basicAuth.Username: s.basicAuth.Password,
			}))
		}

		r.Get("/", s.handleIndex)
		r.Get("/index.html", s.handleIndex)
		r.Get("/static/app.css", s.handleStaticCSS)
		r.Get("/static/app.js", s.handleStaticJS)

		r.Route("/api", func(r chi.Router) {
			r.Route("/cards", func(r chi.Router) {
				r.Get("/", s.handleListCards)
				r.Post("/", s.handleUploadCard)
				r.Get("/{id}", s.handleGetCard)
				r.Delete("/{id}", s.handleDeleteCard)
				r.Get("/{id}/file", s.handleGetCardFile)
				r.Get("/{id}/vcard", s.handleGetCardVCard)
				r.Get("/{id}/qrcode", s.handleGetCardQRCode)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", s.handleListDocuments)
				r.Post("/", s.handleUploadDocument)
				r.Get("/search", s.handleSearchDocuments)
				r.Get("/{id}", s.handleGetDocument)
				r.Delete("/{id}", s.handleDeleteDocument)
			})

			r.Post("/ask", s.handleAsk)
			r.Get("/conversations", s.handleListConversations)
			r.Delete("/conversations", s.handleClearConversations)
			r.Get("/stats", s.handleStats)
		})
	})
}

// Start serves until Shutdown is called. Calling Shutdown first makes Start
// return nil immediately.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("Starting server", "address", ln.Addr().String())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
