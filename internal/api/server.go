// Package api serves the REST and WebSocket surface: account
// management, monitor CRUD, alert history, on-demand condition
// evaluation, backtests, and the live alert feed.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fxmonitor/internal/auth"
	"fxmonitor/internal/fxcalendar"
	"fxmonitor/internal/metrics"
	"fxmonitor/internal/model"
)

// Auth is the session surface the handlers need.
type Auth interface {
	Register(ctx context.Context, email, password string) (int64, error)
	Login(ctx context.Context, email, password, totpCode string) (string, error)
	EnrollTOTP(ctx context.Context, userID int64, account string) (secret, url string, err error)
	Validate(token string) (userID int64, email string, err error)
	Logout(token string)
}

// Store is the persistence surface the handlers need.
type Store interface {
	SaveMonitor(ctx context.Context, m model.Monitor) (int64, error)
	SetMonitorEnabled(ctx context.Context, userID, monitorID int64, enabled bool) error
	DeleteMonitor(ctx context.Context, userID, monitorID int64) error
	MonitorsForUser(ctx context.Context, userID int64) ([]model.Monitor, error)
	RecentAlerts(ctx context.Context, userID int64, limit int) ([]model.AlertRecord, error)
	SetPreference(ctx context.Context, userID int64, key, value string) error
	Preference(ctx context.Context, userID int64, key, fallback string) (string, error)
}

// SeriesSource exposes the monitor's in-memory series per pair and the
// poll loop's pause switch.
type SeriesSource interface {
	Series(pair string) (*model.Series, bool)
	Pause()
	Resume()
	Paused() bool
}

// RateSource reads the cached latest rate per pair.
type RateSource interface {
	LatestRate(ctx context.Context, pair string) (model.Bar, bool, error)
}

// Config configures the API server.
type Config struct {
	ListenAddr string
}

// Server wires the HTTP surface together.
type Server struct {
	cfg     Config
	auth    Auth
	store   Store
	series  SeriesSource
	rates   RateSource
	hub     *Hub
	metrics *metrics.Metrics
	log     *logrus.Entry

	srv   *http.Server
	start time.Time
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// New creates the API server. rates and metrics may be nil.
func New(cfg Config, a Auth, st Store, series SeriesSource, rates RateSource,
	hub *Hub, m *metrics.Metrics, log *logrus.Entry) *Server {
	s := &Server{
		cfg:     cfg,
		auth:    a,
		store:   st,
		series:  series,
		rates:   rates,
		hub:     hub,
		metrics: m,
		log:     log,
		start:   time.Now(),
	}
	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("/api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("/api/v1/auth/logout", s.withAuth(s.handleLogout))
	mux.HandleFunc("/api/v1/auth/totp/enroll", s.withAuth(s.handleTOTPEnroll))

	mux.HandleFunc("/api/v1/monitors", s.withAuth(s.handleMonitors))
	mux.HandleFunc("/api/v1/monitors/", s.withAuth(s.handleMonitorByID))
	mux.HandleFunc("/api/v1/alerts", s.withAuth(s.handleAlerts))
	mux.HandleFunc("/api/v1/preferences", s.withAuth(s.handlePreferences))

	mux.HandleFunc("/api/v1/evaluate", s.withAuth(s.handleEvaluate))
	mux.HandleFunc("/api/v1/backtest", s.withAuth(s.handleBacktest))
	mux.HandleFunc("/api/v1/rates/latest", s.withAuth(s.handleLatestRate))
	mux.HandleFunc("/api/v1/rates/history", s.withAuth(s.handleRateHistory))
	mux.HandleFunc("/api/v1/monitoring", s.withAuth(s.handleMonitoring))

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)

	return mux
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.WithField("addr", s.cfg.ListenAddr).Info("api server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// requestContext carries the authenticated user through a handler.
type requestContext struct {
	userID int64
	email  string
}

type authedHandler func(w http.ResponseWriter, r *http.Request, rc requestContext)

// withAuth resolves the bearer token to a session. WebSocket clients
// pass the token as a query parameter since browsers cannot set
// headers on the upgrade request.
func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, email, err := s.auth.Validate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		next(w, r, requestContext{userID: userID, email: email})
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return r.URL.Query().Get("token")
}

// handleWS upgrades the connection and hands it to the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	userID, _, err := s.auth.Validate(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	s.hub.Register(conn, userID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"ws_clients":  s.hub.ClientCount(),
		"uptime_sec":  int64(time.Since(s.start).Seconds()),
		"publication": fxcalendar.StatusString(now),
		"ts":          now.UTC().Format(time.RFC3339),
	})
}

// mapAuthError translates auth errors to HTTP statuses.
func mapAuthError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, auth.ErrTOTPRequired):
		return http.StatusUnauthorized, "totp code required"
	default:
		var ipe *model.InvalidParameterError
		if errors.As(err, &ipe) {
			return http.StatusBadRequest, ipe.Error()
		}
		return http.StatusInternalServerError, "internal error"
	}
}
