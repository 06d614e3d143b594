package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fxmonitor/config"
	"fxmonitor/internal/api"
	"fxmonitor/internal/auth"
	"fxmonitor/internal/logger"
	"fxmonitor/internal/metrics"
	"fxmonitor/internal/monitor"
	"fxmonitor/internal/notification"
	"fxmonitor/internal/provider"
	"fxmonitor/internal/store/redis"
	"fxmonitor/internal/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor, API, and metrics servers",
	Long: `Start the full service: seed historical series for every configured
pair, poll for new daily rates, evaluate enabled monitors, deliver
alerts, and serve the REST/WebSocket API plus Prometheus metrics.

Configuration comes from environment variables (PAIRS, REDIS_ADDR,
SQLITE_PATH, SMTP_*, ...); see config.Load for the full list.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := logger.Init("fxmonitor", logger.ParseLevel(cfg.LogLevel))

	pairs := cfg.ParsePairs()
	if len(pairs) == 0 {
		return fmt.Errorf("no valid pairs configured (PAIRS=%q)", cfg.Pairs)
	}

	store, err := sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath}, log)
	if err != nil {
		return fmt.Errorf("opening sqlite store: %w", err)
	}
	defer store.Close()

	cache, err := redis.New(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}, log)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer cache.Close()

	m := metrics.New()
	health := metrics.NewHealthStatus(pairs)
	cache.OnBreakerStateChange(func(from, to redis.BreakerState) {
		m.BreakerState.Set(float64(to))
		if to == redis.BreakerOpen {
			m.BreakerTrips.Inc()
		}
	})

	notifier := buildNotifier(cfg, log)
	authSvc := auth.New(store, cfg.SessionTTL, cfg.TOTPIssuer, log)
	prov := provider.New(cfg.ProviderURL, log)

	mon := monitor.New(monitor.Config{
		Pairs:         pairs,
		HistoryYears:  cfg.HistoryYears,
		PollInterval:  cfg.PollInterval,
		AlertCooldown: cfg.AlertCooldown,
	}, prov, store, cache, cache, notifier, m, health, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seedCtx, seedCancel := context.WithTimeout(ctx, 5*time.Minute)
	if err := mon.Seed(seedCtx); err != nil {
		log.WithError(err).Warn("history seed incomplete, retrying per poll")
	}
	seedCancel()

	hub := api.NewHub(m, log)
	apiSrv := api.New(api.Config{ListenAddr: cfg.ListenAddr},
		authSvc, store, mon, cache, hub, m, log)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, log)

	go mon.Run(ctx)
	go hub.Run(ctx, cache)
	go pruneAlerts(ctx, store, log)
	health.StartLivenessChecker(ctx, cache.Client(), store.DB(), 30*time.Second)
	metricsSrv.Start()
	go func() {
		if err := apiSrv.Start(); err != nil {
			log.WithError(err).Error("api server failed")
			cancel()
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-interrupt:
		log.WithField("signal", sig.String()).Info("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	cancel()
	if err := apiSrv.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("api shutdown error")
	}
	metricsSrv.Stop(shutdownCtx)
	log.Info("shutdown complete")
	return nil
}

// alertRetention bounds the sqlite alert history.
const alertRetention = 90 * 24 * time.Hour

// pruneAlerts trims old alert rows once a day.
func pruneAlerts(ctx context.Context, store *sqlite.Store, log *logrus.Entry) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PruneAlerts(ctx, time.Now().Add(-alertRetention))
			if err != nil {
				log.WithError(err).Warn("alert pruning failed")
			} else if n > 0 {
				log.WithField("deleted", n).Info("pruned old alerts")
			}
		}
	}
}

// buildNotifier assembles the delivery chain from configuration. The
// log channel is always present so alerts are never silently dropped.
func buildNotifier(cfg *config.Config, log *logrus.Entry) notification.Notifier {
	backends := []notification.Notifier{notification.NewLogNotifier(log)}
	if cfg.EmailEnabled() {
		backends = append(backends, notification.NewEmailNotifier(notification.EmailConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}, log))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL, log))
	}
	if len(backends) == 1 {
		return backends[0]
	}
	return notification.NewMulti(backends...)
}
