// Package metrics exposes Prometheus metrics and a health endpoint for
// the rate monitor.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds all Prometheus metrics for the monitor.
type Metrics struct {
	PollCycles      prometheus.Counter
	ProviderDur     prometheus.Histogram
	ProviderErrors  prometheus.Counter
	RatesFetched    prometheus.Counter
	StaleRates      prometheus.Counter
	Evaluations     *prometheus.CounterVec // labels: kind
	EvaluationFails prometheus.Counter
	AlertsTriggered *prometheus.CounterVec // labels: kind
	AlertsCooldown  prometheus.Counter
	NotifyErrors    prometheus.Counter

	BacktestRuns prometheus.Counter
	BacktestDur  prometheus.Histogram

	RedisWriteDur  prometheus.Histogram
	SQLiteWriteDur prometheus.Histogram
	BreakerState   prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips   prometheus.Counter
	WSClients      prometheus.Gauge
	WSAlertFanouts prometheus.Counter
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_poll_cycles_total",
			Help: "Completed rate poll cycles",
		}),
		ProviderDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxmonitor_provider_request_duration_seconds",
			Help:    "Rate provider HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}),
		ProviderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_provider_errors_total",
			Help: "Failed rate provider requests",
		}),
		RatesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_rates_fetched_total",
			Help: "Daily rates fetched from the provider",
		}),
		StaleRates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_stale_rates_total",
			Help: "Poll cycles that returned an already-seen rate date",
		}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxmonitor_evaluations_total",
			Help: "Condition evaluations (by condition kind)",
		}, []string{"kind"}),
		EvaluationFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_evaluation_failures_total",
			Help: "Condition evaluations rejected (bad params or data)",
		}),
		AlertsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fxmonitor_alerts_triggered_total",
			Help: "Alerts delivered (by condition kind)",
		}, []string{"kind"}),
		AlertsCooldown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_alerts_suppressed_total",
			Help: "Triggered alerts suppressed by the cooldown window",
		}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_notify_errors_total",
			Help: "Alert delivery failures",
		}),

		BacktestRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_backtest_runs_total",
			Help: "Backtest simulations executed",
		}),
		BacktestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxmonitor_backtest_duration_seconds",
			Help:    "Backtest simulation latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxmonitor_redis_write_duration_seconds",
			Help:    "Redis write latency",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxmonitor_sqlite_write_duration_seconds",
			Help:    "SQLite write latency",
			Buckets: prometheus.DefBuckets,
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxmonitor_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fxmonitor_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSAlertFanouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fxmonitor_ws_alert_fanouts_total",
			Help: "Alert events fanned out to WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.PollCycles,
		m.ProviderDur,
		m.ProviderErrors,
		m.RatesFetched,
		m.StaleRates,
		m.Evaluations,
		m.EvaluationFails,
		m.AlertsTriggered,
		m.AlertsCooldown,
		m.NotifyErrors,
		m.BacktestRuns,
		m.BacktestDur,
		m.RedisWriteDur,
		m.SQLiteWriteDur,
		m.BreakerState,
		m.BreakerTrips,
		m.WSClients,
		m.WSAlertFanouts,
	)

	return m
}

// HealthStatus tracks dependency health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	ProviderOK     bool      `json:"provider_ok"`
	LastRateTime   time.Time `json:"last_rate_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	Pairs          []string  `json:"pairs"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(pairs []string) *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		Pairs:     pairs,
	}
}

func (h *HealthStatus) SetProviderOK(v bool) {
	h.mu.Lock()
	h.ProviderOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastRateTime(t time.Time) {
	h.mu.Lock()
	h.LastRateTime = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency and health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.ProviderOK || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	rateAge := ""
	if !h.LastRateTime.IsZero() {
		rateAge = time.Since(h.LastRateTime).Round(time.Second).String()
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		ProviderOK      bool     `json:"provider_ok"`
		LastRateTime    string   `json:"last_rate_time"`
		RateAge         string   `json:"rate_age"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Pairs           []string `json:"pairs"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		ProviderOK:      h.ProviderOK,
		LastRateTime:    h.LastRateTime.Format(time.RFC3339),
		RateAge:         rateAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Pairs:           h.Pairs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *logrus.Entry
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus, log *logrus.Entry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		log: log,
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.WithField("addr", s.addr).Info("metrics server listening")
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.WithError(err).Error("metrics server error")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
