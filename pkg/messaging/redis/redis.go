// Package redis queues outbound messages on Redis lists for an external
// gateway worker to drain.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/farm-calendar/pkg/circuitbreaker"
	"github.com/jwalitptl/farm-calendar/pkg/messaging"
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
	// MaxQueueLen caps each list. Publish fails with ErrQueueFull once a list
	// holds that many messages; nothing already queued is dropped. Zero leaves
	// lists unbounded.
	MaxQueueLen  int64
	DialTimeout  time.Duration
}

// ErrQueueFull is returned by Publish when the list is at MaxQueueLen.
var ErrQueueFull = errors.New("queue is full")

// maxWatchRetries bounds optimistic retries when another publisher changes the
// list between the length check and the push.
const maxWatchRetries = 5

// ListBroker appends JSON messages to Redis lists. Lists are used rather than
// pub/sub because the consumer may be offline while a pass runs.
type ListBroker struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	maxLen int64
	logger *zerolog.Logger
}

var _ messaging.Broker = (*ListBroker)(nil)

func NewListBroker(ctx context.Context, config Config, logger *zerolog.Logger) (*ListBroker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	opts.DialTimeout = dialTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	b := &ListBroker{
		client: client,
		maxLen: config.MaxQueueLen,
		logger: logger,
	}
	b.cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "redis-queue",
		MaxFailures: 5,
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrQueueFull) || errors.Is(err, redis.TxFailedErr)
		},
		OnStateChange: func(name, from, to string) {
			logger.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("Circuit breaker state changed")
		},
	})
	return b, nil
}

// Publish appends message to the list named channel.
func (b *ListBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return b.cb.Execute(func() error {
		err := b.enqueue(ctx, channel, payload)
		if err != nil && !errors.Is(err, ErrQueueFull) {
			return fmt.Errorf("enqueue on %s: %w", channel, err)
		}
		return err
	})
}

// enqueue pushes payload unless the list is full. The length check and the
// push run under WATCH so concurrent publishers cannot overshoot the cap.
func (b *ListBroker) enqueue(ctx context.Context, channel string, payload []byte) error {
	if b.maxLen <= 0 {
		return b.client.RPush(ctx, channel, payload).Err()
	}

	push := func(tx *redis.Tx) error {
		n, err := tx.LLen(ctx, channel).Result()
		if err != nil {
			return err
		}
		if n >= b.maxLen {
			return fmt.Errorf("%s holds %d messages: %w", channel, n, ErrQueueFull)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, channel, payload)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxWatchRetries; i++ {
		err = b.client.Watch(ctx, push, channel)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// Len reports how many messages wait on channel.
func (b *ListBroker) Len(ctx context.Context, channel string) (int64, error) {
	return b.client.LLen(ctx, channel).Result()
}

func (b *ListBroker) Close() error {
	return b.client.Close()
}
