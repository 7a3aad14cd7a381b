package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"guardian/internal/platform/config"
)

// Client is the shared connection pool used by the idempotency cache and
// the verified-subject registry.
type Client struct {
	*redis.Client
	pool *poolMetrics
}

// New dials Redis and pings it once. An empty URL means Redis is not
// configured and yields a nil client.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: rdb, pool: defaultPoolMetrics()}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// RecordPoolStats publishes the pool counters. The readiness check calls it
// on every tick.
func (c *Client) RecordPoolStats() {
	c.pool.observe(c.PoolStats())
}

var (
	sharedPoolOnce sync.Once
	sharedPool     *poolMetrics
)

func defaultPoolMetrics() *poolMetrics {
	sharedPoolOnce.Do(func() {
		sharedPool = newPoolMetrics(prometheus.DefaultRegisterer)
	})
	return sharedPool
}

// poolMetrics turns the cumulative counters go-redis keeps into Prometheus
// increments.
type poolMetrics struct {
	mu     sync.Mutex
	events *prometheus.CounterVec
	conns  *prometheus.GaugeVec
	seen   redis.PoolStats
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	f := promauto.With(reg)
	return &poolMetrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_redis_pool_events_total",
			Help: "Redis pool events by kind: hit, miss, timeout, stale",
		}, []string{"event"}),
		conns: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "guardian_redis_pool_connections",
			Help: "Redis pool connections by state",
		}, []string{"state"}),
	}
}

func (m *poolMetrics) observe(stats *redis.PoolStats) {
	if stats == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conns.WithLabelValues("total").Set(float64(stats.TotalConns))
	m.conns.WithLabelValues("idle").Set(float64(stats.IdleConns))

	m.add("hit", m.seen.Hits, stats.Hits)
	m.add("miss", m.seen.Misses, stats.Misses)
	m.add("timeout", m.seen.Timeouts, stats.Timeouts)
	m.add("stale", m.seen.StaleConns, stats.StaleConns)
	m.seen = *stats
}

// add skips a counter that went backwards, which happens when the pool is
// recreated.
func (m *poolMetrics) add(event string, before, now uint32) {
	if now > before {
		m.events.WithLabelValues(event).Add(float64(now - before))
	}
}
