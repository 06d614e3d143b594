// Package redis caches latest rates, enforces alert cooldowns, and
// fans alert events out to API instances over Pub/Sub. All writes go
// through a circuit breaker so a Redis outage degrades the monitor to
// log-only operation instead of stalling the poll loop.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"fxmonitor/internal/model"
)

const (
	latestRateTTL = 30 * time.Minute

	// AlertChannel carries JSON alert events for WebSocket fan-out.
	AlertChannel = "pub:alerts"

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// Config configures the Redis cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache wraps a Redis client with the monitor's key schema.
type Cache struct {
	client  *goredis.Client
	breaker *Breaker
	log     *logrus.Entry
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// BreakerState exposes the circuit breaker state for metrics.
func (c *Cache) BreakerState() BreakerState { return c.breaker.State() }

// OnBreakerStateChange registers an additional observer for breaker
// transitions, chained after the built-in log observer. Call before
// concurrent use starts.
func (c *Cache) OnBreakerStateChange(fn func(from, to BreakerState)) {
	prev := c.breaker.OnStateChange
	c.breaker.OnStateChange = func(from, to BreakerState) {
		if prev != nil {
			prev(from, to)
		}
		fn(from, to)
	}
}

// New creates a Cache and pings the server.
func New(cfg Config, log *logrus.Entry) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.WithField("addr", cfg.Addr).Info("redis connected")
	c := &Cache{
		client: client,
		log:    log,
	}
	c.breaker = NewBreaker(breakerMaxFailures, breakerResetTimeout)
	c.breaker.OnStateChange = func(from, to BreakerState) {
		log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).
			Warn("redis circuit breaker state change")
	}
	return c, nil
}

// SetLatestRate caches the newest bar for a pair and publishes it for
// live subscribers.
func (c *Cache) SetLatestRate(ctx context.Context, pair string, bar model.Bar) error {
	data, err := json.Marshal(bar)
	if err != nil {
		return fmt.Errorf("redis marshal rate: %w", err)
	}
	return c.breaker.Execute(func() error {
		pipe := c.client.Pipeline()
		pipe.Set(ctx, "rate:latest:"+pair, data, latestRateTTL)
		pipe.Publish(ctx, "pub:rate:"+pair, data)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// LatestRate reads the cached newest bar for a pair. The second return
// is false when nothing is cached.
func (c *Cache) LatestRate(ctx context.Context, pair string) (model.Bar, bool, error) {
	data, err := c.client.Get(ctx, "rate:latest:"+pair).Bytes()
	if err == goredis.Nil {
		return model.Bar{}, false, nil
	}
	if err != nil {
		return model.Bar{}, false, fmt.Errorf("redis get rate: %w", err)
	}
	var bar model.Bar
	if err := json.Unmarshal(data, &bar); err != nil {
		return model.Bar{}, false, fmt.Errorf("redis unmarshal rate: %w", err)
	}
	return bar, true, nil
}

// TryAcquireCooldown atomically claims the cooldown slot for an alert
// key. Returns true when the caller may alert now; false while a prior
// alert's cooldown is still running. SET NX keeps this race-free across
// monitor instances.
func (c *Cache) TryAcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var acquired bool
	err := c.breaker.Execute(func() error {
		ok, err := c.client.SetNX(ctx, "cooldown:"+key, "1", ttl).Result()
		acquired = ok
		return err
	})
	if err != nil {
		return false, fmt.Errorf("redis cooldown: %w", err)
	}
	return acquired, nil
}

// PublishAlert broadcasts a JSON alert event to API instances.
func (c *Cache) PublishAlert(ctx context.Context, payload []byte) error {
	return c.breaker.Execute(func() error {
		return c.client.Publish(ctx, AlertChannel, payload).Err()
	})
}

// SubscribeAlerts subscribes to the alert channel. The caller reads
// from the returned PubSub's Channel() and closes it when done.
func (c *Cache) SubscribeAlerts(ctx context.Context) (*goredis.PubSub, error) {
	pubsub := c.client.Subscribe(ctx, AlertChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe alerts: %w", err)
	}
	return pubsub, nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
