// Package logger configures structured JSON logging with logrus and
// provides trace ID propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init creates a structured logger for the given service. Output is
// JSON on stdout with the service name embedded in every entry.
func Init(service string, level logrus.Level) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	return l.WithField("service", service)
}

// ParseLevel maps a level string to a logrus level, defaulting to info
// on unknown input so a typo in LOG_LEVEL never kills the process.
func ParseLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID creates a trace ID from a token and timestamp.
// Format: "{token}-{unixNano}".
func GenerateTraceID(token string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", token, ts.UnixNano())
}

// FromContext returns the entry enriched with the context's trace ID,
// if one is set.
func FromContext(ctx context.Context, base *logrus.Entry) *logrus.Entry {
	if tid := TraceID(ctx); tid != "" {
		return base.WithField("trace_id", tid)
	}
	return base
}
