package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/jetsetgo/workshop-console/internal/cloud"
	"github.com/jetsetgo/workshop-console/internal/config"
	"github.com/jetsetgo/workshop-console/internal/logging"
	"github.com/jetsetgo/workshop-console/internal/realtime"
	"github.com/jetsetgo/workshop-console/internal/session"
)

// Server represents the local console HTTP server
type Server struct {
	config     *config.Config
	logBuf     *logging.Buffer
	store      *session.Store
	backend    *cloud.Client
	images     *cloud.ImageHost
	newChannel ChannelFactory
	router     *mux.Router
	http       *http.Server
	started    time.Time

	mu sync.RWMutex
	ws *Workspace
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logBuf *logging.Buffer, store *session.Store) *Server {
	s := &Server{
		config:     cfg,
		logBuf:     logBuf,
		store:      store,
		backend:    cloud.NewClient(&cfg.Backend),
		images:     cloud.NewImageHost(&cfg.ImageHost),
		newChannel: realtime.New,
		router:     mux.NewRouter(),
		started:    time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(logRequests)

	// Public
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/api/logout", s.handleLogout).Methods(http.MethodPost)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)

	// Session required
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/logs", s.withWorkspace(s.handleLogs)).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.withWorkspace(s.handleClearLogs)).Methods(http.MethodDelete)
	api.HandleFunc("/refresh", s.withWorkspace(s.handleRefresh)).Methods(http.MethodPost)
	api.HandleFunc("/bookings", s.withWorkspace(s.handleBookings)).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", s.withWorkspace(s.handleBooking)).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/status", s.withWorkspace(s.handleBookingStatus)).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{id}/highlight", s.withWorkspace(s.handleDismissHighlight)).Methods(http.MethodDelete)
	api.HandleFunc("/spare-parts", s.withWorkspace(s.handleSpareParts)).Methods(http.MethodGet)
	api.HandleFunc("/spare-parts", s.withWorkspace(s.handleRequestSparePart)).Methods(http.MethodPost)
	api.HandleFunc("/inspections", s.withWorkspace(s.handleSubmitInspection)).Methods(http.MethodPost)
	api.HandleFunc("/inspections/{bookingId}", s.withWorkspace(s.handleGetInspection)).Methods(http.MethodGet)
	api.HandleFunc("/inspections/{bookingId}/decision", s.withWorkspace(s.handleDecideInspection)).Methods(http.MethodPost)
	api.HandleFunc("/bills", s.withWorkspace(s.handleGenerateBill)).Methods(http.MethodPost)
	api.HandleFunc("/revenue", s.withWorkspace(s.handleRevenue)).Methods(http.MethodGet)
	api.HandleFunc("/notifications", s.withWorkspace(s.handleNotifications)).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", s.withWorkspace(s.handleMarkRead)).Methods(http.MethodPost)
	api.HandleFunc("/shop", s.withWorkspace(s.handleShop)).Methods(http.MethodPut)
	api.HandleFunc("/profile/image", s.withWorkspace(s.handleProfileImage)).Methods(http.MethodPost)
	api.HandleFunc("/carousel", s.withWorkspace(s.handleListCarousel)).Methods(http.MethodGet)
	api.HandleFunc("/carousel", s.withWorkspace(s.handleCreateCarousel)).Methods(http.MethodPost)
	api.HandleFunc("/carousel/{id}", s.withWorkspace(s.handleDeleteCarousel)).Methods(http.MethodDelete)

	// Web UI
	s.router.HandleFunc("/login", s.handleLoginPage).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleUI).Methods(http.MethodGet)
}

// Handler returns the router wrapped in recovery and CORS middleware
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.config.Server.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.config.Server.AllowedOrigins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE"}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(log.StandardLogger()))(h)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithField("addr", addr).Info("Console listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes the workspace. The saved
// session is kept for the next start.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.mu.Lock()
	ws := s.ws
	s.ws = nil
	s.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
	return err
}

// Resume reopens the workspace for a saved session, if there is one
func (s *Server) Resume() error {
	sess, err := s.store.Load()
	if errors.Is(err, session.ErrNoSession) {
		log.Info("No saved session, waiting for login")
		return nil
	}
	if err != nil {
		return err
	}
	return s.activate(sess)
}

// activate replaces the current workspace with one for sess
func (s *Server) activate(sess *session.Session) error {
	ws, err := openWorkspace(s.config, s.backend, sess, s.newChannel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.ws
	s.ws = ws
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// deactivate closes the workspace and forgets the saved session
func (s *Server) deactivate() error {
	s.mu.Lock()
	ws := s.ws
	s.ws = nil
	s.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
	return s.store.Clear()
}

func (s *Server) workspace() *Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ws
}

// withWorkspace rejects the request unless a session is active
func (s *Server) withWorkspace(fn func(http.ResponseWriter, *http.Request, *Workspace)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := s.workspace()
		if ws == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login_required"})
			return
		}
		fn(w, r, ws)
	}
}

// logRequests logs every request at debug level
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}
