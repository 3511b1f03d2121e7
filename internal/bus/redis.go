// Package bus wraps the Redis client used for the rate limiter's distributed
// store and for the Topology Engine's address-resolution cache, both
// circuit-broken the same way so a Redis outage degrades rather than hangs
// request handling.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/netsblox/cloud/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Service handles all interaction with the Redis cluster.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService creates a robust Redis connection with a circuit breaker guarding it.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	slog.Info("connected to redis", "addr", addr)
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// CacheGet fetches and unmarshals a cached address-resolution entry. The second
// return value is false on a cache miss (including when Redis is unreachable,
// per the circuit breaker's graceful-degradation contract — a miss just falls
// through to the authoritative Mongo lookup).
func (s *Service) CacheGet(ctx context.Context, key string, dest any) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.Get(ctx, key).Result()
	})

	if err != nil {
		if err == redis.Nil {
			metrics.RedisOperationsTotal.WithLabelValues("cache_get", "miss").Inc()
			return false, nil
		}
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			return false, nil
		}
		metrics.RedisOperationsTotal.WithLabelValues("cache_get", "error").Inc()
		slog.Warn("redis cache get failed: treating as miss", "key", key, "error", err)
		return false, nil
	}

	metrics.RedisOperationsTotal.WithLabelValues("cache_get", "hit").Inc()
	if err := json.Unmarshal([]byte(res.(string)), dest); err != nil {
		return false, fmt.Errorf("cache value corrupt: %w", err)
	}
	return true, nil
}

// CacheSet stores a JSON-encoded address-resolution entry with a TTL.
func (s *Service) CacheSet(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	_, err = s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, data, ttl).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			slog.Warn("redis circuit breaker open: skipping cache set", "key", key)
			return nil
		}
		metrics.RedisOperationsTotal.WithLabelValues("cache_set", "error").Inc()
		slog.Warn("redis cache set failed: skipping cache set", "key", key, "error", err)
		return nil
	}

	metrics.RedisOperationsTotal.WithLabelValues("cache_set", "success").Inc()
	return nil
}

// CacheInvalidate removes a cached address-resolution entry, used whenever the
// underlying project/role mapping changes (rename, role add/remove, ownership
// transfer) so stale resolutions aren't served.
func (s *Service) CacheInvalidate(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return nil
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, key).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			return nil
		}
		metrics.RedisOperationsTotal.WithLabelValues("cache_invalidate", "error").Inc()
		return fmt.Errorf("cache invalidate failed: %w", err)
	}

	metrics.RedisOperationsTotal.WithLabelValues("cache_invalidate", "success").Inc()
	return nil
}

// Ping checks Redis connectivity using the PING command.
// Used by health checks to verify Redis is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil // Single-instance mode, no Redis available
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
		}
		return err
	}
	return nil
}

// Close gracefully shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
