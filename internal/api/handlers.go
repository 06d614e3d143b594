package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fxmonitor/internal/backtest"
	"fxmonitor/internal/detector"
	"fxmonitor/internal/model"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		status, msg := mapAuthError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := s.auth.Login(r.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		status, msg := mapAuthError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, rc requestContext) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	s.auth.Logout(bearerToken(r))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTOTPEnroll(w http.ResponseWriter, r *http.Request, rc requestContext) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	secret, url, err := s.auth.EnrollTOTP(r.Context(), rc.userID, rc.email)
	if err != nil {
		s.log.WithError(err).Error("totp enrollment failed")
		writeError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"secret": secret, "url": url})
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request, rc requestContext) {
	switch r.Method {
	case http.MethodGet:
		monitors, err := s.store.MonitorsForUser(r.Context(), rc.userID)
		if err != nil {
			s.log.WithError(err).Error("listing monitors")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if monitors == nil {
			monitors = []model.Monitor{}
		}
		writeJSON(w, http.StatusOK, monitors)

	case http.MethodPost:
		var req monitorRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Reject configs the detector cannot build, so a monitor never
		// sits in the store failing every poll cycle.
		params := req.Params
		if len(params) == 0 {
			params = []byte("{}")
		}
		cond, err := detector.FromConfig(detector.Kind(req.Kind), params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := cond.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}
		m := model.Monitor{
			UserID:  rc.userID,
			Pair:    strings.ToUpper(req.Pair),
			Kind:    req.Kind,
			Params:  params,
			Enabled: enabled,
		}
		id, err := s.store.SaveMonitor(r.Context(), m)
		if err != nil {
			s.log.WithError(err).Error("saving monitor")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		m.ID = id
		writeJSON(w, http.StatusCreated, m)

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

// handleMonitorByID covers /api/v1/monitors/{id}: PUT toggles enabled,
// DELETE removes the monitor. Both are scoped to the session user.
func (s *Server) handleMonitorByID(w http.ResponseWriter, r *http.Request, rc requestContext) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/monitors/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid monitor id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req monitorToggleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		err = s.store.SetMonitorEnabled(r.Context(), rc.userID, id, req.Enabled)
		if err != nil {
			writeError(w, http.StatusNotFound, "monitor not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case http.MethodDelete:
		if err := s.store.DeleteMonitor(r.Context(), rc.userID, id); err != nil {
			writeError(w, http.StatusNotFound, "monitor not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "PUT or DELETE only")
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request, rc requestContext) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if l, err := strconv.Atoi(ls); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}
	alerts, err := s.store.RecentAlerts(r.Context(), rc.userID, limit)
	if err != nil {
		s.log.WithError(err).Error("listing alerts")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if alerts == nil {
		alerts = []model.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handlePreferences reads and writes per-user preference keys.
func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request, rc requestContext) {
	switch r.Method {
	case http.MethodGet:
		key := r.URL.Query().Get("key")
		if key == "" {
			writeError(w, http.StatusBadRequest, "key is required")
			return
		}
		value, err := s.store.Preference(r.Context(), rc.userID, key, r.URL.Query().Get("default"))
		if err != nil {
			s.log.WithError(err).Error("reading preference")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})

	case http.MethodPut:
		var req preferenceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.SetPreference(r.Context(), rc.userID, req.Key, req.Value); err != nil {
			s.log.WithError(err).Error("writing preference")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or PUT only")
	}
}

// handleMonitoring pauses or resumes the poll loop, and reports its
// state on GET.
func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request, rc requestContext) {
	switch r.Method {
	case http.MethodGet:
		status := "running"
		if s.series.Paused() {
			status = "paused"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})

	case http.MethodPost:
		var req monitoringRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Action == "stop" {
			s.series.Pause()
		} else {
			s.series.Resume()
		}
		s.log.WithFields(logrus.Fields{
			"action": req.Action, "user_id": rc.userID,
		}).Info("monitoring state changed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

// handleRateHistory serves the monitored daily series for a pair.
func (s *Server) handleRateHistory(w http.ResponseWriter, r *http.Request, rc requestContext) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		writeError(w, http.StatusBadRequest, "pair is required")
		return
	}
	series, err := s.lookupSeries(pair, r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// handleEvaluate runs one condition against a pair's series on demand.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request, rc requestContext) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := s.lookupSeries(req.Pair, req.Since)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	params := req.Params
	if len(params) == 0 {
		params = []byte("{}")
	}
	cond, err := detector.FromConfig(detector.Kind(req.Kind), params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	det, err := detector.Evaluate(cond, series, nil)
	if s.metrics != nil {
		s.metrics.Evaluations.WithLabelValues(req.Kind).Inc()
	}
	if err != nil {
		writeError(w, statusForEvalError(err), err.Error())
		if s.metrics != nil {
			s.metrics.EvaluationFails.Inc()
		}
		return
	}
	det.Pair = series.Pair
	writeJSON(w, http.StatusOK, det)
}

// handleBacktest runs the simulator on a pair's series.
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request, rc requestContext) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req backtestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := s.lookupSeries(req.Pair, req.Since)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	entry, err := buildCondition(req.Entry)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exit := backtest.ExitPolicy{
		MaxHoldingDays: req.Exit.MaxHoldingDays,
		StopLossPct:    req.Exit.StopLossPct,
		TakeProfitPct:  req.Exit.TakeProfitPct,
	}
	if req.Exit.Signal != nil {
		sig, err := buildCondition(*req.Exit.Signal)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		exit.Signal = sig
	}

	start := time.Now()
	result, err := backtest.Run(series, entry, exit, req.InitialCapital, req.AllowMultipleTrades)
	if s.metrics != nil {
		s.metrics.BacktestRuns.Inc()
		s.metrics.BacktestDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		writeError(w, statusForEvalError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLatestRate(w http.ResponseWriter, r *http.Request, rc requestContext) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	pair := strings.ToUpper(r.URL.Query().Get("pair"))
	if pair == "" {
		writeError(w, http.StatusBadRequest, "pair is required")
		return
	}

	if s.rates != nil {
		if bar, ok, err := s.rates.LatestRate(r.Context(), pair); err == nil && ok {
			writeJSON(w, http.StatusOK, bar)
			return
		}
	}
	// Cache miss or Redis down: serve from the in-memory series.
	series, ok := s.series.Series(pair)
	if !ok || series.Len() == 0 {
		writeError(w, http.StatusNotFound, "unknown pair "+pair)
		return
	}
	writeJSON(w, http.StatusOK, series.Last())
}

// lookupSeries resolves a pair to its monitored series, optionally
// trimmed to bars on or after the since date.
func (s *Server) lookupSeries(pair, since string) (*model.Series, error) {
	pair = strings.ToUpper(pair)
	series, ok := s.series.Series(pair)
	if !ok || series.Len() == 0 {
		return nil, errors.New("no series for pair " + pair)
	}
	if since != "" {
		cutoff, err := time.Parse("2006-01-02", since)
		if err != nil {
			return nil, errors.New("invalid since date")
		}
		series = series.Since(cutoff)
	}
	return series, nil
}

func buildCondition(spec conditionSpec) (detector.Condition, error) {
	params := spec.Params
	if len(params) == 0 {
		params = []byte("{}")
	}
	return detector.FromConfig(detector.Kind(spec.Kind), params)
}

// statusForEvalError maps detector and simulator errors to statuses:
// bad parameters are the caller's fault, thin or malformed data is a
// conflict with the stored series.
func statusForEvalError(err error) int {
	var ipe *model.InvalidParameterError
	if errors.As(err, &ipe) {
		return http.StatusBadRequest
	}
	var ide *model.InsufficientDataError
	var mse *model.MalformedSeriesError
	if errors.As(err, &ide) || errors.As(err, &mse) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
