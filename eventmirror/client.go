// Package eventmirror publishes child lifecycle events onto a Redis
// stream for out-of-process observers. It is optional: the core
// supervisor package has no dependency on it and a caller wires it in
// only by attaching its callbacks onto a supervisor.Config.
//
// Adapted from redis/client.go's connection setup (same dial/read/write
// timeouts and pool sizing); the publishing shape is adapted from
// redis/channel_repo.go's repository pattern (one struct wrapping a
// *Client, one method per domain operation) but XAdd-based rather than
// key/value, since events are a log, not a keyed entity.
package eventmirror

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps a Redis client with the dial/pool settings the teacher
// uses for its own Redis repositories.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// NewClient dials addr/db with the teacher's connection settings
// (redis/client.go), logging the outcome of an initial ping.
func NewClient(addr string, db int, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	opts := &redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	}

	c := &Client{
		Client: redis.NewClient(opts),
		log:    log.Named("eventmirror"),
	}
	c.ping(context.Background())
	return c
}

func (c *Client) ping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.Client.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		c.log.Warn("connection failed", zap.Error(err), zap.Duration("ping_rtt", elapsed))
	} else {
		c.log.Info("connection established", zap.Duration("ping_rtt", elapsed))
	}
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error { return c.Client.Close() }
