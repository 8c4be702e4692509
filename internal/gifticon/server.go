package gifticon

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// Server handles HTTP requests for gifticons
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Gifticon Wallet"`)
			corsError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// Extraction over text recognized elsewhere (e.g. on the phone)
	s.mux.HandleFunc("POST /api/extract", s.requireAuth(s.handleExtract))

	// Gifticons (most specific paths first)
	s.mux.HandleFunc("POST /api/gifticons/scan", s.requireAuth(s.handleScanGifticon))
	s.mux.HandleFunc("GET /api/gifticons/{id}/image", s.requireAuth(s.handleGetGifticonImage))
	s.mux.HandleFunc("POST /api/gifticons/{id}/use", s.requireAuth(s.handleMarkUsed))
	s.mux.HandleFunc("POST /api/gifticons/{id}/unuse", s.requireAuth(s.handleMarkUnused))
	s.mux.HandleFunc("GET /api/gifticons/{id}", s.requireAuth(s.handleGetGifticon))
	s.mux.HandleFunc("PATCH /api/gifticons/{id}", s.requireAuth(s.handleUpdateGifticon))
	s.mux.HandleFunc("DELETE /api/gifticons/{id}", s.requireAuth(s.handleTrashGifticon))
	s.mux.HandleFunc("GET /api/gifticons", s.requireAuth(s.handleListGifticons))
	s.mux.HandleFunc("POST /api/gifticons", s.requireAuth(s.handleCreateGifticon))

	// Trash
	s.mux.HandleFunc("POST /api/trash/{id}/restore", s.requireAuth(s.handleRestoreGifticon))
	s.mux.HandleFunc("DELETE /api/trash/{id}", s.requireAuth(s.handleDeletePermanently))
	s.mux.HandleFunc("GET /api/trash", s.requireAuth(s.handleListTrash))
}

// Handler returns the mux wrapped with the CORS middleware
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
