// Package server exposes ingestion, analytics, export and geofence alerts
// over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/wethinkt/go-cdrintel/internal/analytics"
	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/config"
	"github.com/wethinkt/go-cdrintel/internal/export"
	"github.com/wethinkt/go-cdrintel/internal/geofence"
	"github.com/wethinkt/go-cdrintel/internal/ingest"
	"github.com/wethinkt/go-cdrintel/internal/lookup"
	_ "github.com/wethinkt/go-cdrintel/internal/server/docs"
	"github.com/wethinkt/go-cdrintel/internal/store"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 8790

	// DefaultMaxUpload bounds multipart uploads to /v1/ingest.
	DefaultMaxUpload = 256 << 20

	healthPath  = "/v1/health"
	wsPath      = "/v1/ws/geofence-alerts"
	swaggerPath = "/swagger/"
)

// Config holds server settings.
type Config struct {
	Host      string
	Port      int
	Token     string
	Quiet     bool
	MaxUpload int64
}

// Store is the persistence the server reads and writes through.
type Store interface {
	Records(ctx context.Context, scope cdr.Scope) ([]cdr.Record, cdr.Scope, error)
	ListSessions(ctx context.Context, filter store.SessionFilter) ([]cdr.Session, error)
	GetSession(ctx context.Context, id string) (*cdr.Session, error)
	CreateGeofence(ctx context.Context, g geofence.Geofence) (*geofence.Geofence, error)
	ListGeofences(ctx context.Context, suspect string) ([]geofence.Geofence, error)
	DeleteGeofence(ctx context.Context, id string) error
	Stats(ctx context.Context) (*store.Stats, error)
}

// Services are the components behind the routes. Devices may be nil, which
// disables /v1/devices.
type Services struct {
	Store     Store
	Pipeline  *ingest.Pipeline
	Engine    *analytics.Engine
	Exporter  *export.Exporter
	Alerts    *geofence.Broadcaster
	Evaluator *geofence.Evaluator
	Devices   *lookup.DeviceDecoder
}

// Server is the cdrintel HTTP API.
type Server struct {
	config    Config
	svc       Services
	tickets   *TicketStore
	router    chi.Router
	startedAt time.Time
}

// NewServer creates a server over svc.
//
// @title CDR Intelligence API
// @version 1.0
// @description Ingestion, forensic analytics, export and geofence alerts over call detail records.
// @host localhost:8790
// @BasePath /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func NewServer(cfg Config, svc Services) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if svc.Alerts == nil {
		svc.Alerts = geofence.NewBroadcaster()
	}
	s := &Server{
		config:    cfg,
		svc:       svc,
		tickets:   NewTicketStore(),
		startedAt: time.Now(),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	if !s.config.Quiet {
		r.Use(middleware.Logger)
	}

	if s.config.Token != "" {
		applog.Log.Info("API authentication enabled")
		r.Use(bearerAuth(s.config.Token))
	} else {
		applog.Log.Warn("API running without authentication - use --token to secure")
	}

	r.Handle("/metrics", promhttp.Handler())
	r.Get(swaggerPath+"*", httpSwagger.Handler(httpSwagger.URL(swaggerPath+"doc.json")))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/ingest", s.handleIngest)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)

		r.Get("/analytics/{view}", s.handleAnalytics)
		r.Get("/export", s.handleExport)

		r.Get("/geofences", s.handleListGeofences)
		r.Post("/geofences", s.handleCreateGeofence)
		r.Delete("/geofences/{id}", s.handleDeleteGeofence)

		r.Post("/ws/ticket", s.handleIssueTicket)
		r.Get("/ws/geofence-alerts", s.handleAlertsWS)

		r.Get("/devices/{imei}", s.handleDevice)
	})

	return r
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if existing := config.FindInstanceByPort(s.config.Port); existing != nil {
		return fmt.Errorf("port %d is already in use by cdrintel %s (PID %d, started %s)",
			s.config.Port, existing.Type, existing.PID, existing.StartedAt.Format(time.RFC3339))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if s.config.Port == 0 {
		s.config.Port = ln.Addr().(*net.TCPAddr).Port
	}

	inst := config.Instance{
		Type:      config.InstanceServer,
		PID:       os.Getpid(),
		Port:      s.config.Port,
		Host:      s.config.Host,
		StartedAt: time.Now(),
	}
	if err := config.RegisterInstance(inst); err != nil {
		applog.Log.Warn("Failed to register server instance", "error", err)
	}

	go s.pruneTickets(ctx)

	go func() {
		<-ctx.Done()
		config.UnregisterInstance(os.Getpid())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("cdrintel API running at http://%s:%d\n", s.config.Host, s.config.Port)
	err = srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the server address string.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// pruneTickets drops unredeemed alert tickets once a minute until ctx ends.
func (s *Server) pruneTickets(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.tickets.Prune(); n > 0 {
				applog.Log.Debug("Pruned alert tickets", "count", n)
			}
		}
	}
}

// bearerAuth rejects requests whose Authorization header does not carry
// token. The health check and the API docs are open, and an alert socket
// upgrade that carries a ticket is let through for handleAlertsWS to redeem.
func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authExempt(r) {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			got, ok := strings.CutPrefix(header, "Bearer ")
			switch {
			case header == "":
				w.Header().Set("WWW-Authenticate", `Bearer realm="cdrintel"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
			case !ok:
				writeError(w, http.StatusUnauthorized, "unauthorized", "Authorization must use the Bearer scheme")
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func authExempt(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, swaggerPath) {
		return true
	}
	switch r.URL.Path {
	case healthPath:
		return true
	case wsPath:
		return r.URL.Query().Get("ticket") != ""
	}
	return false
}

// corsMiddleware lets browser dashboards on other origins call the API and
// answers preflight requests directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, msg string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: msg})
}
