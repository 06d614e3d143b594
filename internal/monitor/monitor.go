// Package monitor runs the poll loop: fetch the latest rates, extend
// each pair's series, evaluate every enabled monitor, and deliver
// alerts that clear the cooldown window.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"fxmonitor/internal/detector"
	"fxmonitor/internal/fxcalendar"
	"fxmonitor/internal/logger"
	"fxmonitor/internal/metrics"
	"fxmonitor/internal/model"
	"fxmonitor/internal/notification"
	"fxmonitor/internal/provider"
)

// Provider fetches rates from the upstream API.
type Provider interface {
	Latest(ctx context.Context, base string, quotes []string) (map[string]float64, time.Time, error)
	History(ctx context.Context, base, quote string, from, to time.Time) (*model.Series, error)
}

// Store is the persistence surface the poll loop needs.
type Store interface {
	EnabledMonitors(ctx context.Context) ([]model.Monitor, error)
	RecordAlert(ctx context.Context, a model.AlertRecord) (int64, error)
	UserByID(ctx context.Context, id int64) (model.User, error)
}

// Cooldown throttles repeat alerts for the same monitor.
type Cooldown interface {
	TryAcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RateCache receives the newest bar per pair and alert fan-out events.
type RateCache interface {
	SetLatestRate(ctx context.Context, pair string, bar model.Bar) error
	PublishAlert(ctx context.Context, payload []byte) error
}

// Config tunes the poll loop.
type Config struct {
	Pairs         []string
	HistoryYears  int
	PollInterval  time.Duration
	AlertCooldown time.Duration
}

// Service owns the per-pair series state and the poll loop.
type Service struct {
	cfg      Config
	provider Provider
	store    Store
	cooldown Cooldown
	cache    RateCache
	notifier notification.Notifier
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	log      *logrus.Entry

	// tradingDay gates polling; overridable in tests.
	tradingDay func(time.Time) bool

	paused atomic.Bool

	// mu guards the series map. The Series values themselves are never
	// mutated after publication: appends go through a copy, so a
	// pointer read under mu stays consistent without further locking.
	mu     sync.RWMutex
	series map[string]*model.Series
}

// New creates a monitor service. cache and health may be nil; the loop
// then skips rate caching and health reporting.
func New(cfg Config, p Provider, st Store, cd Cooldown, cache RateCache,
	n notification.Notifier, m *metrics.Metrics, h *metrics.HealthStatus, log *logrus.Entry) *Service {
	if cfg.HistoryYears <= 0 {
		cfg.HistoryYears = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = time.Hour
	}
	return &Service{
		cfg:        cfg,
		provider:   p,
		store:      st,
		cooldown:   cd,
		cache:      cache,
		notifier:   n,
		metrics:    m,
		health:     h,
		log:        log,
		tradingDay: fxcalendar.IsTradingDay,
		series:     make(map[string]*model.Series),
	}
}

// Seed loads the historical series for every configured pair. Called
// once before Run; pairs that fail to load are retried on the next
// poll cycle.
func (s *Service) Seed(ctx context.Context) error {
	now := time.Now().UTC()
	from := now.AddDate(-s.cfg.HistoryYears, 0, 0)

	var firstErr error
	for _, pair := range s.cfg.Pairs {
		if err := s.seedPair(ctx, pair, from, now); err != nil {
			s.log.WithError(err).WithField("pair", pair).Error("history seed failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Service) seedPair(ctx context.Context, pair string, from, to time.Time) error {
	base, quote, err := provider.SplitPair(pair)
	if err != nil {
		return err
	}
	start := time.Now()
	series, err := s.provider.History(ctx, base, quote, from, to)
	if s.metrics != nil {
		s.metrics.ProviderDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.ProviderErrors.Inc()
		}
		return err
	}
	s.mu.Lock()
	s.series[pair] = series
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"pair": pair, "bars": series.Len()}).Info("series seeded")
	return nil
}

// Run polls until the context is cancelled. An immediate first cycle
// runs before the ticker starts.
func (s *Service) Run(ctx context.Context) {
	s.Poll(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll runs one cycle: refresh rates, evaluate monitors, send alerts.
func (s *Service) Poll(ctx context.Context) {
	if s.paused.Load() {
		s.log.Debug("monitoring paused, skipping poll")
		return
	}
	now := time.Now()
	if !s.tradingDay(now) {
		s.log.Debug("non-trading day, skipping poll")
		return
	}
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("poll", now))

	updated := s.refreshRates(ctx)
	s.evaluateMonitors(ctx, updated)

	if s.metrics != nil {
		s.metrics.PollCycles.Inc()
	}
}

// refreshRates fetches the latest rate per base currency and appends a
// new bar where the publication date advanced. Returns the pairs whose
// series gained a bar this cycle.
func (s *Service) refreshRates(ctx context.Context) map[string]bool {
	updated := make(map[string]bool)

	// One /latest call per base currency covers all its quotes.
	byBase := make(map[string][]string)
	for _, pair := range s.cfg.Pairs {
		base, quote, err := provider.SplitPair(pair)
		if err != nil {
			continue
		}
		byBase[base] = append(byBase[base], quote)
	}

	for base, quotes := range byBase {
		start := time.Now()
		rates, date, err := s.provider.Latest(ctx, base, quotes)
		if s.metrics != nil {
			s.metrics.ProviderDur.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			s.log.WithError(err).WithField("base", base).Warn("latest rate fetch failed")
			if s.metrics != nil {
				s.metrics.ProviderErrors.Inc()
			}
			if s.health != nil {
				s.health.SetProviderOK(false)
			}
			continue
		}
		if s.health != nil {
			s.health.SetProviderOK(true)
			s.health.SetLastRateTime(time.Now())
		}
		if fxcalendar.IsStale(date, time.Now()) {
			logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
				"base": base, "rate_date": date.Format("2006-01-02"),
			}).Warn("provider serving a stale rate")
		}

		for quote, rate := range rates {
			pair := base + "/" + quote
			s.applyRate(ctx, pair, date, rate, updated)
		}
	}
	return updated
}

// applyRate appends the bar for a new publication date and refreshes
// the rate cache. Marks the pair updated when the series gained a bar.
func (s *Service) applyRate(ctx context.Context, pair string, date time.Time, rate float64, updated map[string]bool) {
	series, ok := s.Series(pair)
	if !ok {
		// Seed failed at startup; retry now.
		now := time.Now().UTC()
		if err := s.seedPair(ctx, pair, now.AddDate(-s.cfg.HistoryYears, 0, 0), now); err != nil {
			return
		}
		series, _ = s.Series(pair)
		updated[pair] = true
	}

	switch {
	case series.Len() == 0 || series.Last().Date.Before(date):
		// Copy on append: the full slice expression pins the capacity
		// so append allocates a fresh backing array, leaving handlers
		// that hold the old Series with an intact view.
		bars := append(series.Bars[:series.Len():series.Len()], model.BarFromRate(date, rate))
		series = &model.Series{Pair: series.Pair, Bars: bars}
		s.mu.Lock()
		s.series[pair] = series
		s.mu.Unlock()
		updated[pair] = true
		if s.metrics != nil {
			s.metrics.RatesFetched.Inc()
		}
	case series.Last().Date.Equal(date):
		// Same publication date re-served; nothing new.
		if s.metrics != nil {
			s.metrics.StaleRates.Inc()
		}
	default:
		return // older than the series tail, ignore
	}

	if s.cache != nil {
		start := time.Now()
		err := s.cache.SetLatestRate(ctx, pair, series.Last())
		if s.metrics != nil {
			s.metrics.RedisWriteDur.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			s.log.WithError(err).Debug("rate cache write failed")
		}
	}
}

// evaluateMonitors runs every enabled monitor whose pair has a series.
func (s *Service) evaluateMonitors(ctx context.Context, updated map[string]bool) {
	monitors, err := s.store.EnabledMonitors(ctx)
	if err != nil {
		s.log.WithError(err).Error("loading enabled monitors")
		return
	}

	for _, m := range monitors {
		series, ok := s.Series(m.Pair)
		if !ok || series.Len() == 0 {
			continue
		}
		// Only re-evaluate a pair when its series gained a bar;
		// detection output is a pure function of the series.
		if !updated[m.Pair] {
			continue
		}

		cond, err := detector.FromConfig(detector.Kind(m.Kind), m.Params)
		if err != nil {
			s.log.WithError(err).WithField("monitor_id", m.ID).Warn("bad monitor config")
			if s.metrics != nil {
				s.metrics.EvaluationFails.Inc()
			}
			continue
		}

		det, err := detector.Evaluate(cond, series, nil)
		if s.metrics != nil {
			s.metrics.Evaluations.WithLabelValues(m.Kind).Inc()
		}
		if err != nil {
			s.log.WithError(err).WithField("monitor_id", m.ID).Warn("evaluation failed")
			if s.metrics != nil {
				s.metrics.EvaluationFails.Inc()
			}
			continue
		}
		if !det.Triggered {
			continue
		}
		det.Pair = m.Pair
		s.deliver(ctx, m, det)
	}
}

// deliver sends one triggered detection through cooldown, persistence,
// notification, and WebSocket fan-out.
func (s *Service) deliver(ctx context.Context, m model.Monitor, det detector.Detection) {
	ok, err := s.cooldown.TryAcquireCooldown(ctx,
		cooldownKey(m.UserID, m.Pair, m.Kind), s.cfg.AlertCooldown)
	if err != nil {
		// Redis down: alert anyway rather than stay silent. Worst case
		// is a duplicate alert, not a missed one.
		s.log.WithError(err).Warn("cooldown check failed, delivering anyway")
	} else if !ok {
		if s.metrics != nil {
			s.metrics.AlertsCooldown.Inc()
		}
		return
	}

	title, message := notification.Format(det)
	now := time.Now().UTC()

	email := ""
	if user, err := s.store.UserByID(ctx, m.UserID); err == nil {
		email = user.Email
	} else {
		s.log.WithError(err).WithField("user_id", m.UserID).Warn("resolving alert recipient")
	}

	payload, _ := json.Marshal(det)
	writeStart := time.Now()
	_, err = s.store.RecordAlert(ctx, model.AlertRecord{
		UserID:      m.UserID,
		Pair:        m.Pair,
		Kind:        m.Kind,
		Message:     message,
		Payload:     payload,
		TriggeredAt: now,
	})
	if s.metrics != nil {
		s.metrics.SQLiteWriteDur.Observe(time.Since(writeStart).Seconds())
	}
	if err != nil {
		s.log.WithError(err).Error("recording alert")
	}

	alert := notification.Alert{
		UserID:      m.UserID,
		Email:       email,
		Pair:        m.Pair,
		Kind:        m.Kind,
		Title:       title,
		Message:     message,
		Detection:   det,
		TriggeredAt: now,
	}
	if err := s.notifier.Send(ctx, alert); err != nil {
		s.log.WithError(err).Error("alert delivery failed")
		if s.metrics != nil {
			s.metrics.NotifyErrors.Inc()
		}
	}

	if s.cache != nil {
		if data, err := json.Marshal(alert); err == nil {
			if err := s.cache.PublishAlert(ctx, data); err != nil {
				s.log.WithError(err).Debug("alert fan-out publish failed")
			}
		}
	}

	if s.metrics != nil {
		s.metrics.AlertsTriggered.WithLabelValues(m.Kind).Inc()
	}
	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"user_id": m.UserID,
		"pair":    m.Pair,
		"kind":    m.Kind,
	}).Info("alert delivered")
}

// Pause suspends polling until Resume. Seeded series and stored
// monitors are untouched.
func (s *Service) Pause() { s.paused.Store(true) }

// Resume lifts a pause; the next tick polls normally.
func (s *Service) Resume() { s.paused.Store(false) }

// Paused reports whether polling is suspended.
func (s *Service) Paused() bool { return s.paused.Load() }

// Series returns the in-memory series for a pair, if seeded. The
// returned value is a stable snapshot: new bars are published as fresh
// Series values, never appended in place.
func (s *Service) Series(pair string) (*model.Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.series[pair]
	return series, ok
}

func cooldownKey(userID int64, pair, kind string) string {
	return fmt.Sprintf("alert:%s:%s:%d", pair, kind, userID)
}
