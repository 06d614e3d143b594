// Package notification delivers triggered condition alerts to users
// over email, webhooks, or the log.
package notification

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"fxmonitor/internal/detector"
)

// Alert is one triggered condition ready for delivery.
type Alert struct {
	UserID      int64              `json:"user_id"`
	Email       string             `json:"-"`
	Pair        string             `json:"pair"`
	Kind        string             `json:"kind"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	Detection   detector.Detection `json:"detection"`
	TriggeredAt time.Time          `json:"triggered_at"`
}

// Notifier is the interface for all delivery backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. It is the fallback
// channel when no external delivery is configured.
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	n.log.WithFields(logrus.Fields{
		"user_id": alert.UserID,
		"pair":    alert.Pair,
		"kind":    alert.Kind,
	}).Info(alert.Title + ": " + alert.Message)
	return nil
}

// Multi fans one alert out to several backends. Every backend is
// attempted; failures are joined so one broken channel never blocks
// the others.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
