package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "retention:window:"
	runningMarker = "running"
)

// WindowLock makes sure a retention window is processed once across API and scheduler.
type WindowLock interface {
	// Claim returns true when the caller owns windowStart. Otherwise it returns the
	// stored result of the owning run, or nil while that run is still in progress.
	Claim(ctx context.Context, windowStart time.Time, ttl time.Duration) (bool, *Result, error)
	// Complete stores the result for later claimants without extending the TTL.
	Complete(ctx context.Context, windowStart time.Time, result Result) error
	// Release gives up a claim so a failed run can be retried in the same window.
	Release(ctx context.Context, windowStart time.Time) error
}

// RedisWindowLock implements WindowLock with SETNX on a key per UTC window start.
type RedisWindowLock struct {
	client redis.Cmdable
}

func NewRedisWindowLock(client redis.Cmdable) *RedisWindowLock {
	return &RedisWindowLock{client: client}
}

func (l *RedisWindowLock) Claim(ctx context.Context, windowStart time.Time, ttl time.Duration) (bool, *Result, error) {
	key := lockKey(windowStart)
	ok, err := l.client.SetNX(ctx, key, runningMarker, ttl).Result()
	if err != nil {
		return false, nil, fmt.Errorf("failed to claim retention window: %w", err)
	}
	if ok {
		return true, nil, nil
	}

	raw, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) || raw == runningMarker {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to read retention window: %w", err)
	}

	var prior Result
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return false, nil, nil
	}
	return false, &prior, nil
}

func (l *RedisWindowLock) Complete(ctx context.Context, windowStart time.Time, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := l.client.Set(ctx, lockKey(windowStart), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to store retention result: %w", err)
	}
	return nil
}

func (l *RedisWindowLock) Release(ctx context.Context, windowStart time.Time) error {
	if err := l.client.Del(ctx, lockKey(windowStart)).Err(); err != nil {
		return fmt.Errorf("failed to release retention window: %w", err)
	}
	return nil
}

func lockKey(windowStart time.Time) string {
	return lockKeyPrefix + windowStart.UTC().Format(time.RFC3339)
}
